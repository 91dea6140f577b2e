package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the single immutable configuration object, resolved once at
// startup and passed explicitly into constructors.
type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Bot     BotConfig
	Payment PaymentConfig
	Session SessionConfig
	Auth    AuthConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// BotConfig covers the messaging-platform trust boundary.
type BotConfig struct {
	// Token is the bot token; the client-payload signing secret is
	// derived from it.
	Token string `env:"BOT_TOKEN"`
	// WebhookSecret is compared against the webhook secret header.
	WebhookSecret string `env:"BOT_WEBHOOK_SECRET"`
	// WebhookSecretHeader names the header carrying the secret.
	WebhookSecretHeader string `env:"BOT_WEBHOOK_SECRET_HEADER, default=X-Bot-Api-Secret-Token"`
	// InitDataMaxAge is the freshness window for signed client payloads.
	InitDataMaxAge time.Duration `env:"BOT_INITDATA_MAX_AGE, default=1h"`
	// Workers sizes the webhook update dispatcher pool.
	Workers int `env:"BOT_WEBHOOK_WORKERS, default=8"`
}

// PaymentConfig covers the payment-provider trust boundary.
type PaymentConfig struct {
	Secret          string `env:"PAYMENT_SECRET"`
	SignatureHeader string `env:"PAYMENT_SIGNATURE_HEADER, default=X-Payment-Signature"`
}

// SessionConfig covers session lifetime and cookie transport.
type SessionConfig struct {
	TTL        time.Duration `env:"SESSION_TTL,         default=24h"`
	CookieName string        `env:"SESSION_COOKIE_NAME, default=miniapp_session"`
	Secure     bool          `env:"SESSION_COOKIE_SECURE, default=true"`
	SameSite   string        `env:"SESSION_COOKIE_SAMESITE, default=lax"`
}

// AuthConfig covers the authentication flows.
type AuthConfig struct {
	CodeTTL       time.Duration `env:"AUTH_CODE_TTL, default=10m"`
	LinkTTL       time.Duration `env:"AUTH_LINK_TTL, default=15m"`
	LinkSecret    string        `env:"AUTH_LINK_SECRET"`
	MinPassword   int           `env:"AUTH_MIN_PASSWORD, default=8"`
	OwnerKeys     []string      `env:"AUTH_OWNER_KEYS"`
	OwnerSyncTick time.Duration `env:"AUTH_OWNER_SYNC_INTERVAL, default=5m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=miniapp_system"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
