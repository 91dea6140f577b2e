package ports

import (
	"context"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// SessionStore is the key-value collaborator holding session bindings.
// The lifecycle policy (TTLs, token generation, cookies) lives in the
// session manager, not here.
type SessionStore interface {
	// Save stores the session until its expiry.
	Save(ctx context.Context, s domain.Session) error

	// Get returns the session for the token, or (nil, nil) when the
	// token is unknown or expired. Storage failures are errors.
	Get(ctx context.Context, token string) (*domain.Session, error)

	// Delete removes the session. Deleting an absent token is a no-op.
	Delete(ctx context.Context, token string) error
}
