package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

// tokenBytes gives 256 bits of entropy per session token.
const tokenBytes = 32

// SessionConfig controls token lifetime and cookie transport. Defaults
// are secure: HttpOnly, Secure, SameSite=Lax.
type SessionConfig struct {
	TTL        time.Duration
	CookieName string
	Secure     bool
	SameSite   http.SameSite
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.CookieName == "" {
		c.CookieName = "miniapp_session"
	}
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteLaxMode
	}
	return c
}

// SessionManager issues, reads, refreshes, and revokes session tokens.
// Storage is delegated to the session store collaborator; only lifecycle
// policy lives here.
type SessionManager struct {
	store ports.SessionStore
	cfg   SessionConfig
	now   func() time.Time
}

func NewSessionManager(store ports.SessionStore, cfg SessionConfig) *SessionManager {
	return &SessionManager{store: store, cfg: cfg.withDefaults(), now: time.Now}
}

// Issue creates a session for the principal with a fresh random token.
func (m *SessionManager) Issue(ctx context.Context, principalID string) (*domain.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	s := domain.Session{
		Token:       token,
		PrincipalID: principalID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.cfg.TTL),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &s, nil
}

// Read resolves a token to its session. Missing, malformed, or expired
// tokens yield (nil, nil): the caller is anonymous, not in error.
func (m *SessionManager) Read(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if s == nil || s.Expired(m.now()) {
		return nil, nil
	}
	return s, nil
}

// Refresh slides the expiry of a live session. Unknown or expired tokens
// fail soft like Read.
func (m *SessionManager) Refresh(ctx context.Context, token string) (*domain.Session, error) {
	s, err := m.Read(ctx, token)
	if err != nil || s == nil {
		return s, err
	}
	s.ExpiresAt = m.now().UTC().Add(m.cfg.TTL)
	if err := m.store.Save(ctx, *s); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return s, nil
}

// Revoke destroys the session binding. Idempotent: revoking an unknown
// or already-revoked token succeeds.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Cookie builds the transport cookie for a session.
func (m *SessionManager) Cookie(s *domain.Session) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	}
}

// ClearCookie builds an expired cookie that removes the session from the
// client.
func (m *SessionManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	}
}

// CookieName exposes the configured cookie name for request parsing.
func (m *SessionManager) CookieName() string {
	return m.cfg.CookieName
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
