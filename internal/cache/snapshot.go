// Package cache provides the short-lived leaderboard snapshot cache.
// Staleness here only ever affects display: settlement reads the bid store
// directly and never goes through this package.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enquira/backend/internal/ranking"
)

// SnapshotCache stores the active-bid snapshot of one enquiry for a few
// seconds. Implementations may drop data at any time; callers fall through
// to Postgres on a miss.
type SnapshotCache interface {
	Get(ctx context.Context, enquiryID uuid.UUID) ([]ranking.Entry, bool)
	Set(ctx context.Context, enquiryID uuid.UUID, entries []ranking.Entry)
}

type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotCache(addr string, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

var _ SnapshotCache = (*RedisSnapshotCache)(nil)

func (c *RedisSnapshotCache) Get(ctx context.Context, enquiryID uuid.UUID) ([]ranking.Entry, bool) {
	data, err := c.client.Get(ctx, snapshotKey(enquiryID)).Bytes()
	if err != nil {
		// redis.Nil and transport errors are both just misses.
		return nil, false
	}
	var entries []ranking.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *RedisSnapshotCache) Set(ctx context.Context, enquiryID uuid.UUID, entries []ranking.Entry) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	c.client.Set(ctx, snapshotKey(enquiryID), data, c.ttl)
}

func snapshotKey(enquiryID uuid.UUID) string {
	return "leaderboard:" + enquiryID.String()
}
