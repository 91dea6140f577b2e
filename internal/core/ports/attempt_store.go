package ports

import (
	"context"
	"time"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// AttemptStore persists single-use auth attempts and deep-link token
// registrations.
type AttemptStore interface {
	// Put stores the attempt, replacing any pending attempt for the
	// same kind and target. Records are kept past expiry (bounded by
	// retention) so expired and consumed attempts stay distinguishable.
	Put(ctx context.Context, attempt domain.AuthAttempt) error

	// Consume atomically validates and marks the attempt: exactly one
	// concurrent call for the same attempt succeeds. Failures are
	// domain.ErrInvalidCredential (unknown target or code mismatch),
	// domain.ErrExpired, or domain.ErrAlreadyConsumed.
	Consume(ctx context.Context, kind domain.AttemptKind, target, code string, now time.Time) (*domain.AuthAttempt, error)

	// RegisterToken records a deep-link token id with its pending
	// identity key.
	RegisterToken(ctx context.Context, tokenID, identityKey string, ttl time.Duration) error

	// ConsumeToken atomically removes the token registration and
	// returns its identity key. A second call for the same id fails
	// with domain.ErrAlreadyConsumed.
	ConsumeToken(ctx context.Context, tokenID string) (string, error)
}
