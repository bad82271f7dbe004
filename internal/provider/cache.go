package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ModelCache stores model discovery results between completions.
type ModelCache interface {
	Get(ctx context.Context, key string) ([]Model, bool)
	Set(ctx context.Context, key string, models []Model, ttl time.Duration)
}

// cacheKey identifies a discovery result by endpoint and credential without
// storing the credential itself.
func cacheKey(endpoint, apiKey string) string {
	sum := sha256.Sum256([]byte(endpoint + "\x00" + apiKey))
	return hex.EncodeToString(sum[:8])
}

type memoryEntry struct {
	models  []Model
	expires time.Time
}

// MemoryCache is an in-process ModelCache.
type MemoryCache struct {
	entries map[string]memoryEntry
	now     func() time.Time
	mu      sync.Mutex
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.models, true
}

func (c *MemoryCache) Set(_ context.Context, key string, models []Model, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{models: models, expires: c.now().Add(ttl)}
}

const redisKeyPrefix = "medimatch:models:"

// RedisCache shares discovery results across processes.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(redisURL string, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Model, bool) {
	data, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("model cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		c.logger.Warn("model cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return models, true
}

func (c *RedisCache) Set(ctx context.Context, key string, models []Model, ttl time.Duration) {
	data, err := json.Marshal(models)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("model cache write failed", zap.Error(err))
	}
}

// Close shuts down the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
