package ports

import (
	"context"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// PrincipalRepository persists principals and their identity bindings.
type PrincipalRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Principal, error)
	FindByIdentity(ctx context.Context, key string) (*domain.Principal, error)

	// EnsureByIdentity finds the principal bound to the identity key or
	// creates one in a single atomic insert-if-absent operation. Under
	// concurrent first-time resolution of the same key the loser must
	// observe the winner's principal, never an error and never a second
	// principal.
	EnsureByIdentity(ctx context.Context, identity domain.ExternalIdentity) (*domain.Principal, error)

	// LinkIdentity binds an additional identity key to the principal.
	// Returns domain.ErrIdentityConflict when the key is already bound
	// to a different principal; binding the same key twice is a no-op.
	LinkIdentity(ctx context.Context, principalID string, identity domain.ExternalIdentity) (*domain.Principal, error)

	// SetPasswordHash stores the bcrypt hash for the principal.
	SetPasswordHash(ctx context.Context, principalID, hash string) error

	// SyncOwnerRoles reconciles the owner role against the configured
	// identity keys: grants owner to matching principals lacking it,
	// revokes it from holders no longer configured, and leaves all other
	// roles untouched. Idempotent; individual principals are updated
	// atomically so readers never observe a partial role set.
	SyncOwnerRoles(ctx context.Context, configuredKeys []string) error
}
