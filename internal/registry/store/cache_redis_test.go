package store

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpine/internal/registry/metrics"
	"alpine/internal/registry/models"
	"alpine/pkg/platform/sentinel"
	"alpine/pkg/testutil"
)

func TestRedisCacheDegradesToBackendAndCountsOnRegistry(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	backend := NewInMemory()
	addr := testutil.Address(t, 4)
	require.NoError(t, backend.Save(context.Background(), &models.Identity{Address: addr, Username: "hana"}))

	cache := NewRedisCache(backend, client, WithCacheMetrics(m))
	got, err := cache.FindByAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "hana", got.Username)

	assert.InDelta(t, 1, promtestutil.ToFloat64(m.CacheLookups.WithLabelValues("error")), 0)
	count, err := promtestutil.GatherAndCount(reg, "alpine_identity_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "lookups must be exported by the registry passed in")
}

func TestRedisCacheWithoutMetrics(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisCache(NewInMemory(), client).FindByAddress(context.Background(), testutil.Address(t, 5))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
