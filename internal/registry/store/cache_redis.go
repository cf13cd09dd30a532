package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"alpine/internal/registry/metrics"
	"alpine/internal/registry/models"
)

const (
	identityKeyPrefix = "identity:addr:"

	defaultIdentityTTL = 24 * time.Hour
)

// Backend is the identity store the cache reads through to.
type Backend interface {
	FindByUsernameFold(ctx context.Context, username string) (*models.Identity, error)
	FindByAddress(ctx context.Context, addr string) (*models.Identity, error)
	Save(ctx context.Context, identity *models.Identity) error
	ListByUsername(ctx context.Context) ([]*models.Identity, error)
}

// RedisCache caches address lookups in Redis in front of a Backend.
// Registered identities are never renamed or deleted, so a cached hit can only go
// stale by TTL. Misses are not cached because the address may register later.
type RedisCache struct {
	Backend
	client *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

func WithCacheTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheLogger(logger *slog.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// WithCacheMetrics counts lookups by result on m.
func WithCacheMetrics(m *metrics.Metrics) RedisCacheOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

func NewRedisCache(next Backend, client *redis.Client, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{Backend: next, client: client, ttl: defaultIdentityTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// FindByAddress serves from Redis when possible. Redis failures degrade to the backend.
func (c *RedisCache) FindByAddress(ctx context.Context, addr string) (*models.Identity, error) {
	key := identityKeyPrefix + addr
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var identity models.Identity
		if jsonErr := json.Unmarshal(raw, &identity); jsonErr == nil {
			c.countLookup("hit")
			return &identity, nil
		}
		c.countLookup("error")
	case errors.Is(err, redis.Nil):
		c.countLookup("miss")
	default:
		c.countLookup("error")
		c.warn(ctx, "identity cache read failed", err)
	}

	identity, err := c.Backend.FindByAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(identity); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.warn(ctx, "identity cache write failed", setErr)
		}
	}
	return identity, nil
}

func (c *RedisCache) warn(ctx context.Context, msg string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "error", err)
	}
}

func (c *RedisCache) countLookup(result string) {
	if c.metrics != nil {
		c.metrics.IncrementCacheLookup(result)
	}
}
