package ports

import "context"

// BotUpdate is a signature-verified update from the messaging-platform
// webhook, reduced to what the dispatcher and downstream bot logic need.
type BotUpdate struct {
	UpdateID int64
	SenderID int64
	ChatID   int64
	Text     string
	Payload  []byte
}

// UpdateHandler consumes verified bot updates. Updates for the same
// sender are delivered in order.
type UpdateHandler interface {
	Handle(ctx context.Context, update BotUpdate) error
}

// UpdateEnqueuer accepts verified updates for ordered asynchronous
// processing.
type UpdateEnqueuer interface {
	Enqueue(update BotUpdate)
}

// UpdateDedup filters redelivered webhook updates by update id.
type UpdateDedup interface {
	IsDuplicate(ctx context.Context, updateID int64) (bool, error)
	Mark(ctx context.Context, updateID int64) error
}

// PaymentEvent is a signature-verified payment-provider webhook body.
// The body is opaque here; payment business logic parses it downstream.
type PaymentEvent struct {
	Signature string
	Body      []byte
}

// PaymentProcessor consumes verified payment events.
type PaymentProcessor interface {
	Process(ctx context.Context, event PaymentEvent) error
}
