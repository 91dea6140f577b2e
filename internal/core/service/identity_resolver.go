package service

import (
	"context"
	"fmt"

	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

// IdentityResolver maps verified external identities onto principals.
// Resolve and Link are the only mutators of the principal/identity
// relationship; the atomicity of first-time creation is delegated to the
// repository's insert-if-absent contract.
type IdentityResolver struct {
	repo ports.PrincipalRepository
}

func NewIdentityResolver(repo ports.PrincipalRepository) *IdentityResolver {
	return &IdentityResolver{repo: repo}
}

// Resolve returns the principal bound to the identity, creating one on
// first sight. Concurrent first-time resolution of the same key yields
// one principal; losers observe the winner's record.
func (r *IdentityResolver) Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.Principal, error) {
	if identity.Key == "" {
		return nil, fmt.Errorf("resolve identity: empty key: %w", domain.ErrInvalidCredential)
	}
	p, err := r.repo.EnsureByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("resolve identity %s: %w", identity.Source, err)
	}
	return p, nil
}

// Link attaches an additional identity to an existing principal. A key
// already bound to a different principal is a conflict; linking never
// merges principals.
func (r *IdentityResolver) Link(ctx context.Context, principalID string, identity domain.ExternalIdentity) (*domain.Principal, error) {
	if identity.Key == "" {
		return nil, fmt.Errorf("link identity: empty key: %w", domain.ErrInvalidCredential)
	}
	p, err := r.repo.LinkIdentity(ctx, principalID, identity)
	if err != nil {
		return nil, fmt.Errorf("link identity %s: %w", identity.Source, err)
	}
	return p, nil
}
