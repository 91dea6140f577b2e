package ports

import (
	"context"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// AuthService orchestrates the three authentication flows. Every flow
// ends in either a session (issued last, after all state is committed)
// or a typed domain error.
type AuthService interface {
	// Code-based flow.
	StartCode(ctx context.Context, identityKey string) error
	CompleteCode(ctx context.Context, identityKey, code string) (*domain.Principal, *domain.Session, error)

	// Deep-link flow.
	StartDeepLink(ctx context.Context, identity domain.ExternalIdentity) (string, error)
	CompleteDeepLink(ctx context.Context, token string) (*domain.Principal, *domain.Session, error)

	// Email flow.
	Signup(ctx context.Context, email, password string) error
	CompleteSignup(ctx context.Context, email, code string) (*domain.Principal, *domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Principal, *domain.Session, error)
	LinkEmail(ctx context.Context, principalID, email, password string) (*domain.Principal, error)

	// Client-payload channel: resolve a verified identity into a
	// principal and a fresh session.
	LoginIdentity(ctx context.Context, identity domain.ExternalIdentity) (*domain.Principal, *domain.Session, error)

	Logout(ctx context.Context, token string) error
}

// IdentityResolver turns verified external identities into principals.
type IdentityResolver interface {
	Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.Principal, error)
	Link(ctx context.Context, principalID string, identity domain.ExternalIdentity) (*domain.Principal, error)
}

// SessionManager owns session token lifecycle.
type SessionManager interface {
	Issue(ctx context.Context, principalID string) (*domain.Session, error)
	Read(ctx context.Context, token string) (*domain.Session, error)
	Refresh(ctx context.Context, token string) (*domain.Session, error)
	Revoke(ctx context.Context, token string) error
}

// RoleAuthority resolves role sets and enforces role requirements.
type RoleAuthority interface {
	RolesOf(ctx context.Context, principalID string) ([]domain.Role, error)
	Require(principal *domain.Principal, required domain.Role) error
	SyncOwnerRoles(ctx context.Context) error
}
