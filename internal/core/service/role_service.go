package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

// RoleService resolves role sets, enforces role requirements, and keeps
// the configured owner list reconciled against stored assignments.
type RoleService struct {
	repo      ports.PrincipalRepository
	ownerKeys []string
	log       zerolog.Logger
}

func NewRoleService(repo ports.PrincipalRepository, ownerKeys []string, log zerolog.Logger) *RoleService {
	return &RoleService{repo: repo, ownerKeys: ownerKeys, log: log}
}

// RolesOf returns the stored role set of the principal. Every principal
// implicitly holds at least the user role.
func (s *RoleService) RolesOf(ctx context.Context, principalID string) ([]domain.Role, error) {
	p, err := s.repo.FindByID(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("roles of %s: %w", principalID, err)
	}
	if len(p.Roles) == 0 {
		return []domain.Role{domain.RoleUser}, nil
	}
	return p.Roles, nil
}

// Require succeeds when the principal's highest role satisfies the
// required role under the owner > admin > user hierarchy.
func (s *RoleService) Require(principal *domain.Principal, required domain.Role) error {
	if principal == nil {
		return &domain.AuthorizationError{Required: required}
	}
	if !principal.MaxRole().AtLeast(required) {
		return &domain.AuthorizationError{Required: required}
	}
	return nil
}

// SyncOwnerRoles reconciles stored owner assignments against the
// configured owner identity keys. Safe to run repeatedly and alongside
// request traffic; the repository applies the reconciliation as atomic
// per-principal set operations.
func (s *RoleService) SyncOwnerRoles(ctx context.Context) error {
	if err := s.repo.SyncOwnerRoles(ctx, s.ownerKeys); err != nil {
		return fmt.Errorf("sync owner roles: %w", err)
	}
	s.log.Info().Int("configured_owners", len(s.ownerKeys)).Msg("owner roles reconciled")
	return nil
}

// RunPeriodicSync re-reconciles owner roles on the given interval until
// the context is cancelled. Errors are logged, not fatal; the next tick
// retries.
func (s *RoleService) RunPeriodicSync(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOwnerRoles(ctx); err != nil {
				s.log.Error().Err(err).Msg("periodic owner sync failed")
			}
		}
	}
}
