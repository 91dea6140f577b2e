package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

// webAppDataKey is the literal HMAC key the platform uses to derive the
// per-bot signing secret from the bot token.
const webAppDataKey = "WebAppData"

// defaultMaxAge bounds payload freshness when the caller passes no
// window. The check itself is never skipped.
const defaultMaxAge = time.Hour

// InitDataUser is the user object embedded in a verified client payload.
type InitDataUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// InitData holds the fields of a verified client payload. StartParam
// carries the opaque deep-link start parameter (invite code, referrer)
// when present.
type InitData struct {
	User       InitDataUser
	AuthDate   time.Time
	QueryID    string
	StartParam string
}

// Identity converts the verified payload into an external identity claim.
func (d *InitData) Identity() domain.ExternalIdentity {
	id := domain.PlatformIdentity(domain.SourcePlatformClient, d.User.ID)
	id.Username = d.User.Username
	id.Locale = d.User.LanguageCode
	return id
}

// VerifyInitData authenticates a raw mini-app client payload against the
// bot token.
//
// The payload is a query-string of key/value fields plus a "hash" field.
// The check recomputes HMAC-SHA256 over the lexicographically sorted
// "key=value" lines (hash excluded), keyed by HMAC-SHA256("WebAppData",
// botToken), and compares hex digests in constant time. A payload whose
// auth_date is older than maxAge is rejected as a replay; the freshness
// check is not optional, and a non-positive maxAge falls back to
// defaultMaxAge rather than disabling it.
func VerifyInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("init data: %w", domain.ErrMissingCredential)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("init data malformed: %w", domain.ErrInvalidCredential)
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, fmt.Errorf("init data has no hash: %w", domain.ErrInvalidCredential)
	}

	if !hmac.Equal([]byte(computeInitDataHash(values, botToken)), []byte(providedHash)) {
		return nil, fmt.Errorf("init data hash mismatch: %w", domain.ErrInvalidCredential)
	}

	// Signature holds from here on; field errors are still invalid
	// because a conforming client always sends user and auth_date.
	authDateRaw := values.Get("auth_date")
	if authDateRaw == "" {
		return nil, fmt.Errorf("init data has no auth_date: %w", domain.ErrInvalidCredential)
	}
	authUnix, err := strconv.ParseInt(authDateRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("init data auth_date malformed: %w", domain.ErrInvalidCredential)
	}
	authDate := time.Unix(authUnix, 0)

	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if now.Sub(authDate) > maxAge {
		return nil, fmt.Errorf("init data older than %s: %w", maxAge, domain.ErrExpired)
	}

	userRaw := values.Get("user")
	if userRaw == "" {
		return nil, fmt.Errorf("init data has no user: %w", domain.ErrInvalidCredential)
	}
	var user InitDataUser
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		return nil, fmt.Errorf("init data user malformed: %w", domain.ErrInvalidCredential)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("init data user has no id: %w", domain.ErrInvalidCredential)
	}

	return &InitData{
		User:       user,
		AuthDate:   authDate,
		QueryID:    values.Get("query_id"),
		StartParam: values.Get("start_param"),
	}, nil
}

// computeInitDataHash recomputes the expected hex digest for the payload.
func computeInitDataHash(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	dataCheck := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheck))
	return hex.EncodeToString(mac.Sum(nil))
}
