// Package cache holds the read-side compliance-status cache. The cache is
// advisory: a miss or an unreachable Redis falls back to recomputation, never
// to an error.
package cache

import (
	"context"
	"encoding/json"
	"time"

	platformredis "walezi/internal/platform/redis"
	id "walezi/pkg/domain"
	"walezi/pkg/platform/sentinel"
)

// StatusCache stores rendered compliance statuses with a TTL. A nil
// *StatusCache is valid and behaves as an always-miss cache.
type StatusCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// New returns nil when the redis client is nil, keeping the cache optional
// end to end.
func New(client *platformredis.Client, ttl time.Duration) *StatusCache {
	if client == nil {
		return nil
	}
	return &StatusCache{client: client, ttl: ttl}
}

func key(guardianshipID id.GuardianshipID) string {
	return "walezi:status:" + guardianshipID.String()
}

// Get loads a cached status into dest. Returns sentinel.ErrNotFound on miss.
func (c *StatusCache) Get(ctx context.Context, guardianshipID id.GuardianshipID, dest any) error {
	if c == nil {
		return sentinel.ErrNotFound
	}
	raw, err := c.client.Get(ctx, key(guardianshipID)).Bytes()
	if err != nil {
		return sentinel.ErrNotFound
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return sentinel.ErrInvalidState
	}
	return nil
}

// Set stores a rendered status. Failures are swallowed; the cache never
// blocks the read path.
func (c *StatusCache) Set(ctx context.Context, guardianshipID id.GuardianshipID, status any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(guardianshipID), raw, c.ttl).Err()
}

// Invalidate drops the cached status after a mutation.
func (c *StatusCache) Invalidate(ctx context.Context, guardianshipID id.GuardianshipID) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, key(guardianshipID)).Err()
}
