package verify

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// VerifySecretToken checks the shared-secret webhook header against the
// configured secret.
//
// Both values are hashed to a fixed length before the constant-time
// compare, so the comparison never early-exits on a length mismatch and
// its cost is independent of where the inputs first differ.
func VerifySecretToken(header, secret string) error {
	if header == "" {
		return fmt.Errorf("webhook secret token: %w", domain.ErrMissingCredential)
	}

	got := sha256.Sum256([]byte(header))
	want := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
		return fmt.Errorf("webhook secret token: %w", domain.ErrInvalidCredential)
	}
	return nil
}
