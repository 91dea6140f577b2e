package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// VerifyPaymentSignature authenticates a payment-provider webhook body.
//
// The provider signs the raw body with HMAC-SHA256 keyed by the shared
// provider secret and sends the hex digest in a signature header. The
// body must not be parsed or acted on before this check passes. Any
// malformed signature fails closed as invalid.
func VerifyPaymentSignature(body []byte, signature, secret string) error {
	if signature == "" {
		return fmt.Errorf("payment signature: %w", domain.ErrMissingCredential)
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("payment signature malformed: %w", domain.ErrInvalidCredential)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return fmt.Errorf("payment signature mismatch: %w", domain.ErrInvalidCredential)
	}
	return nil
}
