package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

const testBotToken = "12345:test-bot-token"

// signedInitData builds a correctly signed payload from raw fields,
// mirroring the platform's signing chain.
func signedInitData(t *testing.T, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validFields(now time.Time) map[string]string {
	return map[string]string{
		"user":      `{"id":42,"first_name":"Ada","username":"ada","language_code":"en"}`,
		"auth_date": fmt.Sprintf("%d", now.Unix()),
		"query_id":  "AAH3xQ",
	}
}

func TestVerifyInitData_Valid(t *testing.T) {
	now := time.Now()
	raw := signedInitData(t, validFields(now))

	data, err := VerifyInitData(raw, testBotToken, time.Hour, now)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if data.User.ID != 42 {
		t.Fatalf("unexpected user id: %d", data.User.ID)
	}
	if data.User.Username != "ada" {
		t.Fatalf("unexpected username: %s", data.User.Username)
	}

	identity := data.Identity()
	if identity.Key != "tg:42" {
		t.Fatalf("unexpected identity key: %s", identity.Key)
	}
	if identity.Source != domain.SourcePlatformClient {
		t.Fatalf("unexpected source: %s", identity.Source)
	}
	if identity.Locale != "en" {
		t.Fatalf("unexpected locale: %s", identity.Locale)
	}
}

func TestVerifyInitData_StartParam(t *testing.T) {
	now := time.Now()
	fields := validFields(now)
	fields["start_param"] = "invite-xyz"

	data, err := VerifyInitData(signedInitData(t, fields), testBotToken, time.Hour, now)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if data.StartParam != "invite-xyz" {
		t.Fatalf("unexpected start_param: %s", data.StartParam)
	}
}

func TestVerifyInitData_Empty(t *testing.T) {
	if _, err := VerifyInitData("", testBotToken, time.Hour, time.Now()); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := VerifyInitData("   ", testBotToken, time.Hour, time.Now()); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential for whitespace, got %v", err)
	}
}

func TestVerifyInitData_TamperedField(t *testing.T) {
	now := time.Now()
	raw := signedInitData(t, validFields(now))

	// Flip the user id inside the signed payload.
	tampered := strings.Replace(raw, "42", "43", 1)
	if _, err := VerifyInitData(tampered, testBotToken, time.Hour, now); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyInitData_TamperedHash(t *testing.T) {
	now := time.Now()
	raw := signedInitData(t, validFields(now))

	values, _ := url.ParseQuery(raw)
	h := values.Get("hash")
	flipped := "0"
	if h[0] == '0' {
		flipped = "1"
	}
	values.Set("hash", flipped+h[1:])

	if _, err := VerifyInitData(values.Encode(), testBotToken, time.Hour, now); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyInitData_WrongBotToken(t *testing.T) {
	now := time.Now()
	raw := signedInitData(t, validFields(now))

	if _, err := VerifyInitData(raw, "999:other-token", time.Hour, now); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyInitData_Stale(t *testing.T) {
	now := time.Now()
	fields := validFields(now.Add(-2 * time.Hour))

	if _, err := VerifyInitData(signedInitData(t, fields), testBotToken, time.Hour, now); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyInitData_ZeroMaxAgeStillExpires(t *testing.T) {
	now := time.Now()
	fields := validFields(now.Add(-2 * time.Hour))

	// A non-positive window must not disable the freshness check.
	if _, err := VerifyInitData(signedInitData(t, fields), testBotToken, 0, now); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := VerifyInitData(signedInitData(t, fields), testBotToken, -time.Minute, now); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired for negative window, got %v", err)
	}
}

func TestVerifyInitData_MissingUser(t *testing.T) {
	now := time.Now()
	fields := validFields(now)
	delete(fields, "user")

	if _, err := VerifyInitData(signedInitData(t, fields), testBotToken, time.Hour, now); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyInitData_MissingAuthDate(t *testing.T) {
	now := time.Now()
	fields := validFields(now)
	delete(fields, "auth_date")

	if _, err := VerifyInitData(signedInitData(t, fields), testBotToken, time.Hour, now); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyInitData_NoHashField(t *testing.T) {
	if _, err := VerifyInitData("user=%7B%22id%22%3A42%7D&auth_date=1", testBotToken, time.Hour, time.Now()); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}
