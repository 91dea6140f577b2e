package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/botforge/miniapp-system/internal/core/domain"
	"github.com/botforge/miniapp-system/internal/core/ports"
)

// dummyHash is compared against when login targets an unknown email, so
// a miss costs the same bcrypt work as a wrong password.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AuthConfig parameterizes the authentication flows.
type AuthConfig struct {
	CodeTTL time.Duration
	LinkTTL time.Duration
	LinkKey []byte
	MinPass int
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.CodeTTL <= 0 {
		c.CodeTTL = 10 * time.Minute
	}
	if c.LinkTTL <= 0 {
		c.LinkTTL = 15 * time.Minute
	}
	if c.MinPass <= 0 {
		c.MinPass = 8
	}
	return c
}

// AuthService orchestrates the code-based, deep-link, and email flows.
// It is the only component that mutates identity and session state, and
// it always issues the session last, after every other mutation has been
// committed. A cancelled caller therefore observes either no session or
// a fully valid one.
type AuthService struct {
	resolver ports.IdentityResolver
	sessions ports.SessionManager
	attempts ports.AttemptStore
	repo     ports.PrincipalRepository
	notifier ports.Notifier
	cfg      AuthConfig
	now      func() time.Time
}

func NewAuthService(
	resolver ports.IdentityResolver,
	sessions ports.SessionManager,
	attempts ports.AttemptStore,
	repo ports.PrincipalRepository,
	notifier ports.Notifier,
	cfg AuthConfig,
) *AuthService {
	return &AuthService{
		resolver: resolver,
		sessions: sessions,
		attempts: attempts,
		repo:     repo,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// LoginIdentity authenticates an already-verified external identity:
// resolve to a principal, then issue the session.
func (s *AuthService) LoginIdentity(ctx context.Context, identity domain.ExternalIdentity) (*domain.Principal, *domain.Session, error) {
	p, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.sessions.Issue(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

// StartCode begins the code-based flow for an identity key: a six-digit
// single-use code with a short expiry, delivered by the notifier.
func (s *AuthService) StartCode(ctx context.Context, identityKey string) error {
	if _, ok := domain.IdentityFromKey(identityKey); !ok {
		return fmt.Errorf("start code: %w", domain.ErrInvalidCredential)
	}

	code, err := newCode()
	if err != nil {
		return err
	}

	attempt := domain.AuthAttempt{
		Kind:      domain.AttemptCode,
		Target:    identityKey,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.cfg.CodeTTL),
	}
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return fmt.Errorf("store code attempt: %w", err)
	}
	if err := s.notifier.SendCode(ctx, identityKey, code); err != nil {
		return fmt.Errorf("deliver code: %w", err)
	}
	return nil
}

// CompleteCode consumes the pending code attempt exactly once and issues
// a session. Re-submission of a used code fails with AlreadyConsumed; a
// correct code past its window fails with Expired.
func (s *AuthService) CompleteCode(ctx context.Context, identityKey, code string) (*domain.Principal, *domain.Session, error) {
	identity, ok := domain.IdentityFromKey(identityKey)
	if !ok {
		return nil, nil, fmt.Errorf("complete code: %w", domain.ErrInvalidCredential)
	}

	if _, err := s.attempts.Consume(ctx, domain.AttemptCode, identityKey, code, s.now()); err != nil {
		return nil, nil, err
	}
	return s.LoginIdentity(ctx, identity)
}

// StartDeepLink issues a signed single-use link token encoding a pending
// identity. The token id is registered before the token leaves the
// service so completion can consume it exactly once.
func (s *AuthService) StartDeepLink(ctx context.Context, identity domain.ExternalIdentity) (string, error) {
	tokenID, err := randomID()
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": identity.Key,
		"jti": tokenID,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.LinkTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.LinkKey)
	if err != nil {
		return "", fmt.Errorf("sign link token: %w", err)
	}

	if err := s.attempts.RegisterToken(ctx, tokenID, identity.Key, s.cfg.LinkTTL); err != nil {
		return "", fmt.Errorf("register link token: %w", err)
	}
	return signed, nil
}

// CompleteDeepLink validates the link token's signature and freshness,
// consumes its registration, and authenticates the encoded identity.
func (s *AuthService) CompleteDeepLink(ctx context.Context, token string) (*domain.Principal, *domain.Session, error) {
	if token == "" {
		return nil, nil, fmt.Errorf("link token: %w", domain.ErrMissingCredential)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.cfg.LinkKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, fmt.Errorf("link token: %w", domain.ErrExpired)
		}
		return nil, nil, fmt.Errorf("link token: %w", domain.ErrInvalidCredential)
	}
	if !parsed.Valid {
		return nil, nil, fmt.Errorf("link token: %w", domain.ErrInvalidCredential)
	}

	tokenID, _ := claims["jti"].(string)
	subject, _ := claims["sub"].(string)
	if tokenID == "" || subject == "" {
		return nil, nil, fmt.Errorf("link token claims: %w", domain.ErrInvalidCredential)
	}

	identityKey, err := s.attempts.ConsumeToken(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}
	if identityKey != subject {
		return nil, nil, fmt.Errorf("link token subject mismatch: %w", domain.ErrInvalidCredential)
	}

	identity, ok := domain.IdentityFromKey(identityKey)
	if !ok {
		return nil, nil, fmt.Errorf("link token identity: %w", domain.ErrInvalidCredential)
	}
	return s.LoginIdentity(ctx, identity)
}

// Signup begins the email flow: the password is hashed immediately and
// the pending identity lives only in the attempt until the emailed code
// is confirmed. No principal exists before verification.
func (s *AuthService) Signup(ctx context.Context, email, password string) error {
	norm := domain.NormalizeEmail(email)
	if norm == "" || len(password) < s.cfg.MinPass {
		return fmt.Errorf("signup: %w", domain.ErrInvalidCredential)
	}

	key := domain.EmailKey(norm)
	existing, err := s.repo.FindByIdentity(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrPrincipalNotFound) {
		return fmt.Errorf("signup lookup: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("signup: %w", domain.ErrIdentityConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	code, err := newCode()
	if err != nil {
		return err
	}

	attempt := domain.AuthAttempt{
		Kind:         domain.AttemptSignup,
		Target:       key,
		Code:         code,
		Email:        norm,
		PasswordHash: string(hash),
		ExpiresAt:    s.now().UTC().Add(s.cfg.CodeTTL),
	}
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return fmt.Errorf("store signup attempt: %w", err)
	}
	if err := s.notifier.SendCode(ctx, norm, code); err != nil {
		return fmt.Errorf("deliver signup code: %w", err)
	}
	return nil
}

// CompleteSignup consumes the pending signup attempt, creates the
// principal with its email binding and password hash, then issues the
// session. Signup only ever creates: if the email was claimed by another
// principal during the pending window, completion fails with a conflict
// instead of adopting that principal and overwriting its credential.
func (s *AuthService) CompleteSignup(ctx context.Context, email, code string) (*domain.Principal, *domain.Session, error) {
	norm := domain.NormalizeEmail(email)
	attempt, err := s.attempts.Consume(ctx, domain.AttemptSignup, domain.EmailKey(norm), code, s.now())
	if err != nil {
		return nil, nil, err
	}

	p, err := s.resolver.Resolve(ctx, domain.EmailIdentity(attempt.Email))
	if err != nil {
		return nil, nil, err
	}
	// A principal fresh from this signup holds exactly the email binding
	// and no credential yet; anything else pre-existed.
	if p.PasswordHash != "" || len(p.IdentityKeys) > 1 {
		return nil, nil, fmt.Errorf("complete signup: %w", domain.ErrIdentityConflict)
	}
	if err := s.repo.SetPasswordHash(ctx, p.ID, attempt.PasswordHash); err != nil {
		return nil, nil, fmt.Errorf("store password hash: %w", err)
	}

	sess, err := s.sessions.Issue(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

// Login authenticates an email/password pair. Unknown email and wrong
// password are indistinguishable to the caller, and both cost one bcrypt
// comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Principal, *domain.Session, error) {
	norm := domain.NormalizeEmail(email)

	p, err := s.repo.FindByIdentity(ctx, domain.EmailKey(norm))
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, nil, fmt.Errorf("login: %w", domain.ErrInvalidCredential)
		}
		return nil, nil, fmt.Errorf("login lookup: %w", err)
	}

	if p.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, nil, fmt.Errorf("login: %w", domain.ErrInvalidCredential)
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, nil, fmt.Errorf("login: %w", domain.ErrInvalidCredential)
	}

	sess, err := s.sessions.Issue(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

// LinkEmail binds an email identity to an already-authenticated
// principal, subject to the resolver's conflict rule.
func (s *AuthService) LinkEmail(ctx context.Context, principalID, email, password string) (*domain.Principal, error) {
	norm := domain.NormalizeEmail(email)
	if norm == "" || len(password) < s.cfg.MinPass {
		return nil, fmt.Errorf("link email: %w", domain.ErrInvalidCredential)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.resolver.Link(ctx, principalID, domain.EmailIdentity(norm))
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPasswordHash(ctx, p.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("store password hash: %w", err)
	}
	p.PasswordHash = string(hash)
	return p, nil
}

// Logout revokes the session. Idempotent via the session manager.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// newCode draws a uniform six-digit one-time code.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// randomID draws a 128-bit token identifier.
func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
