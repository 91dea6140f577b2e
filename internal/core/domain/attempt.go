package domain

import "time"

// AttemptKind discriminates which flow created an AuthAttempt.
type AttemptKind string

const (
	AttemptCode   AttemptKind = "code"
	AttemptSignup AttemptKind = "signup"
)

// AuthAttempt is a single-use, time-bounded credential exchange artifact.
// Created at flow start, consumed exactly once on success, otherwise left
// to expire. Signup attempts additionally carry the pending email identity
// and its password hash so no principal exists before verification.
type AuthAttempt struct {
	Kind         AttemptKind `json:"kind"`
	Target       string      `json:"target"`
	Code         string      `json:"code"`
	Email        string      `json:"email,omitempty"`
	PasswordHash string      `json:"password_hash,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
	Consumed     bool        `json:"consumed"`
}
