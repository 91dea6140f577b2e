package domain

import "time"

// Session is proof of a prior successful authentication: an opaque token
// bound to one principal, time-limited and revocable.
type Session struct {
	Token       string    `json:"-"`
	PrincipalID string    `json:"principal_id"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its validity at the given
// instant.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
