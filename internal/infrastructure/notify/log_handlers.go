package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/botforge/miniapp-system/internal/core/ports"
)

// LogUpdateHandler stands in for the external bot logic: it acknowledges
// verified updates by logging them. Swap for the real handler when the
// bot business logic is wired in.
type LogUpdateHandler struct {
	log zerolog.Logger
}

func NewLogUpdateHandler(log zerolog.Logger) *LogUpdateHandler {
	return &LogUpdateHandler{log: log}
}

func (h *LogUpdateHandler) Handle(ctx context.Context, update ports.BotUpdate) error {
	h.log.Debug().
		Int64("update_id", update.UpdateID).
		Int64("sender_id", update.SenderID).
		Msg("bot update received")
	return nil
}

// LogPaymentProcessor stands in for the external payment business logic.
// It sees only signature-verified events.
type LogPaymentProcessor struct {
	log zerolog.Logger
}

func NewLogPaymentProcessor(log zerolog.Logger) *LogPaymentProcessor {
	return &LogPaymentProcessor{log: log}
}

func (p *LogPaymentProcessor) Process(ctx context.Context, event ports.PaymentEvent) error {
	p.log.Info().Int("body_bytes", len(event.Body)).Msg("payment event verified")
	return nil
}
