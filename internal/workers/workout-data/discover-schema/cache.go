// internal/workers/workout-data/discover-schema/cache.go
package discoverschema

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"

	"github.com/redis/go-redis/v9"
)

// Cache holds the most recent schema snapshot.
type Cache interface {
	Get(ctx context.Context) (*models.SchemaSnapshot, bool)
	Set(ctx context.Context, snapshot *models.SchemaSnapshot)
	Invalidate(ctx context.Context) error
}

// MemoryCache keeps the snapshot in process. A zero TTL never expires.
type MemoryCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	snapshot *models.SchemaSnapshot
	storedAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) (*models.SchemaSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

func (c *MemoryCache) Set(_ context.Context, snapshot *models.SchemaSnapshot) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.storedAt = c.now()
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
	return nil
}

// RedisCache shares the snapshot between instances under a single key.
type RedisCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client redis.Cmdable, key string, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{client: client, key: key, ttl: ttl, logger: log}
}

// Get treats any redis failure as a miss.
func (c *RedisCache) Get(ctx context.Context) (*models.SchemaSnapshot, bool) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("schema cache read failed", map[string]interface{}{"key": c.key, "error": err.Error()})
		}
		return nil, false
	}
	var snapshot models.SchemaSnapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		c.logger.Warn("schema cache entry is corrupt", map[string]interface{}{"key": c.key, "error": err.Error()})
		return nil, false
	}
	return &snapshot, true
}

func (c *RedisCache) Set(ctx context.Context, snapshot *models.SchemaSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("schema cache write failed", map[string]interface{}{"key": c.key, "error": err.Error()})
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
