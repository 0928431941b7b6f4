package relations

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DebtCache is a read-through cache for debt balances. A nil cache is a no-op,
// so tests and the worker can run without Redis.
type DebtCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDebtCache constructs DebtCache.
func NewDebtCache(client *redis.Client, ttl time.Duration) *DebtCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DebtCache{client: client, ttl: ttl}
}

func debtKey(id uuid.UUID) string {
	return "debt:" + id.String()
}

// Get returns the cached balance when present.
func (c *DebtCache) Get(ctx context.Context, id uuid.UUID) (float64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, debtKey(id)).Result()
	if err != nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Set stores a balance.
func (c *DebtCache) Set(ctx context.Context, id uuid.UUID, value float64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, debtKey(id), strconv.FormatFloat(value, 'f', -1, 64), c.ttl).Err()
}

// Invalidate drops a cached balance after a debt write.
func (c *DebtCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, debtKey(id)).Err()
}
