package domain

import (
	"fmt"
	"strings"
)

// IdentitySource discriminates the channel an identity claim arrived on.
type IdentitySource string

const (
	SourcePlatformClient  IdentitySource = "platform_client"
	SourcePlatformWebhook IdentitySource = "platform_webhook"
	SourceEmail           IdentitySource = "email"
)

// ExternalIdentity is a verified identity claim from one external channel.
// It is derived per-request from verified input and never stored verbatim;
// only Key is persisted as a binding on a Principal.
type ExternalIdentity struct {
	Source   IdentitySource
	Key      string
	Username string
	Locale   string
}

// PlatformIdentity builds an identity for a platform user id. Both the
// embedded client and the webhook channel identify users by the same
// numeric id, so they share one key space and resolve to one principal.
func PlatformIdentity(source IdentitySource, userID int64) ExternalIdentity {
	return ExternalIdentity{
		Source: source,
		Key:    PlatformKey(userID),
	}
}

// EmailIdentity builds an identity for a normalized email address.
func EmailIdentity(email string) ExternalIdentity {
	norm := NormalizeEmail(email)
	return ExternalIdentity{
		Source: SourceEmail,
		Key:    EmailKey(norm),
	}
}

// PlatformKey is the stable binding key for a platform user id.
func PlatformKey(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

// EmailKey is the stable binding key for an already-normalized email.
func EmailKey(normalizedEmail string) string {
	return "email:" + normalizedEmail
}

// IdentityFromKey reconstructs an identity claim from a stored binding
// key. Used where only the key survives (auth attempts, deep-link
// registrations). Reports false for keys from an unknown key space.
func IdentityFromKey(key string) (ExternalIdentity, bool) {
	switch {
	case strings.HasPrefix(key, "tg:"):
		return ExternalIdentity{Source: SourcePlatformWebhook, Key: key}, true
	case strings.HasPrefix(key, "email:"):
		return ExternalIdentity{Source: SourceEmail, Key: key}, true
	default:
		return ExternalIdentity{}, false
	}
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// All lookups and writes go through this, so "Foo@Bar.com " and
// "foo@bar.com" bind to the same principal.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
