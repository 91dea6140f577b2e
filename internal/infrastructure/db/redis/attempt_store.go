package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/botforge/miniapp-system/internal/core/domain"
)

const (
	attemptPrefix = "auth:attempt:"
	linkPrefix    = "auth:link:"

	// attemptRetention keeps records past their logical expiry so a
	// late complete still reads as Expired instead of unknown.
	attemptRetention = time.Hour
)

// consumeScript validates and marks an attempt in one server-side step,
// so exactly one concurrent Consume for the same attempt succeeds.
var consumeScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'code', 'expires_at', 'consumed', 'data')
if not h[1] then return {'missing'} end
if h[3] == '1' then return {'consumed'} end
if tonumber(ARGV[1]) > tonumber(h[2]) then return {'expired'} end
if h[1] ~= ARGV[2] then return {'mismatch'} end
redis.call('HSET', KEYS[1], 'consumed', '1')
return {'ok', h[4]}
`)

// AttemptStore keeps single-use auth attempts and deep-link token
// registrations in Redis.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func attemptKey(kind domain.AttemptKind, target string) string {
	return attemptPrefix + string(kind) + ":" + target
}

func (s *AttemptStore) Put(ctx context.Context, attempt domain.AuthAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("attempt store: marshal: %w", err)
	}

	key := attemptKey(attempt.Kind, attempt.Target)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"code", attempt.Code,
		"expires_at", attempt.ExpiresAt.Unix(),
		"consumed", "0",
		"data", data,
	)
	pipe.ExpireAt(ctx, key, attempt.ExpiresAt.Add(attemptRetention))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("attempt store: %w", domain.ErrProviderUnavailable)
	}
	return nil
}

func (s *AttemptStore) Consume(ctx context.Context, kind domain.AttemptKind, target, code string, now time.Time) (*domain.AuthAttempt, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{attemptKey(kind, target)}, now.Unix(), code).Result()
	if err != nil {
		return nil, fmt.Errorf("attempt store: %w", domain.ErrProviderUnavailable)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("attempt store: unexpected script reply")
	}

	switch reply[0] {
	case "ok":
		raw, _ := reply[1].(string)
		var attempt domain.AuthAttempt
		if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
			return nil, fmt.Errorf("attempt store: unmarshal: %w", err)
		}
		attempt.Consumed = true
		return &attempt, nil
	case "missing", "mismatch":
		return nil, fmt.Errorf("attempt: %w", domain.ErrInvalidCredential)
	case "expired":
		return nil, fmt.Errorf("attempt: %w", domain.ErrExpired)
	case "consumed":
		return nil, fmt.Errorf("attempt: %w", domain.ErrAlreadyConsumed)
	default:
		return nil, fmt.Errorf("attempt store: unexpected script reply %v", reply[0])
	}
}

func (s *AttemptStore) RegisterToken(ctx context.Context, tokenID, identityKey string, ttl time.Duration) error {
	if err := s.client.Set(ctx, linkPrefix+tokenID, identityKey, ttl+attemptRetention).Err(); err != nil {
		return fmt.Errorf("attempt store: %w", domain.ErrProviderUnavailable)
	}
	return nil
}

// ConsumeToken relies on GETDEL being a single atomic command: only one
// caller ever receives the registration.
func (s *AttemptStore) ConsumeToken(ctx context.Context, tokenID string) (string, error) {
	val, err := s.client.GetDel(ctx, linkPrefix+tokenID).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("link token: %w", domain.ErrAlreadyConsumed)
	}
	if err != nil {
		return "", fmt.Errorf("attempt store: %w", domain.ErrProviderUnavailable)
	}
	return val, nil
}
