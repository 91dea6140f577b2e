package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = time.Hour

// UpdateDedup provides replay protection for webhook updates backed by
// Redis. The platform retries deliveries it considers unacknowledged, so
// an update id may legitimately arrive more than once.
// Key format: dedup:update:<update_id>
type UpdateDedup struct {
	client *redis.Client
}

// NewUpdateDedup creates an UpdateDedup wrapping the given Redis client.
func NewUpdateDedup(client *redis.Client) *UpdateDedup {
	return &UpdateDedup{client: client}
}

// IsDuplicate reports whether this update has already been accepted.
func (d *UpdateDedup) IsDuplicate(ctx context.Context, updateID int64) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(updateID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this update has been accepted (expires after dedupTTL).
func (d *UpdateDedup) Mark(ctx context.Context, updateID int64) error {
	return d.client.Set(ctx, d.key(updateID), "1", dedupTTL).Err()
}

func (d *UpdateDedup) key(updateID int64) string {
	return fmt.Sprintf("dedup:update:%d", updateID)
}
