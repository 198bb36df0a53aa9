package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/store"
)

// Entry is a cached read. Entries outlive the TTL so that a failed refresh
// can still be answered from them.
type Entry struct {
	Rows      []store.Row `json:"rows"`
	FetchedAt time.Time   `json:"fetched_at"`
}

type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, entry Entry)
	Clear(ctx context.Context)
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]Entry)}
}

func (c *memoryCache) Get(_ context.Context, key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *memoryCache) Set(_ context.Context, key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

func (c *memoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// redisCache shares reads between replicas. Redis failures degrade to
// cache misses; they never fail the read itself.
type redisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	zaplog *zap.Logger
}

const redisPrefix = "pixrecon:ledger:"

func NewRedisCache(ctx context.Context, addr string, staleTTL time.Duration, zaplog *zap.Logger) (Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errs.Wrapf(err, "ping redis %s", addr)
	}
	return &redisCache{rdb: rdb, prefix: redisPrefix, ttl: staleTTL, zaplog: zaplog.Named("redis-cache")}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (Entry, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.zaplog.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.zaplog.Warn("cache entry corrupted", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	return e, true
}

func (c *redisCache) Set(ctx context.Context, key string, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.zaplog.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisCache) Clear(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.zaplog.Warn("cache delete failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.zaplog.Warn("cache clear failed", zap.Error(err))
	}
}
