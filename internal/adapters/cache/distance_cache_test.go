package cache

import (
	"context"
	"testing"
	"time"
	"trip-route-service/internal/platform/db"
	"trip-route-service/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSqliteCache(t *testing.T, ttl time.Duration) *SqliteDistanceCache {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, InitSchema(context.Background(), conn, DialectSQLite))
	// Idempotent.
	require.NoError(t, InitSchema(context.Background(), conn, DialectSQLite))
	return NewSqliteDistanceCache(conn, ttl)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisDistanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisDistanceCache(rdb, ttl), mr
}

func TestDistanceCacheContract(t *testing.T) {
	caches := map[string]func(t *testing.T) ports.DistanceCache{
		"sqlite": func(t *testing.T) ports.DistanceCache { return newSqliteCache(t, 0) },
		"redis": func(t *testing.T) ports.DistanceCache {
			c, _ := newRedisCache(t, 0)
			return c
		},
		"memory": func(t *testing.T) ports.DistanceCache { return NewMemoryDistanceCache(100, 0) },
	}

	for name, mk := range caches {
		t.Run(name, func(t *testing.T) { checkDistanceCache(t, mk(t)) })
	}
}

// checkDistanceCache runs the behavior every DistanceCache must share against an empty cache.
func checkDistanceCache(t *testing.T, c ports.DistanceCache) {
	t.Helper()
	ctx := context.Background()

	got, err := c.GetMany(ctx, "DRIVING:6.92710,79.86120", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, got)

	in := map[string]ports.DistanceResult{
		"DRIVING:6.93450,79.85010": {DistanceMeters: 1520.5, DurationSeconds: 300, DurationInTrafficSeconds: 410, Reachable: true},
		"DRIVING:7.29060,80.63370": {Reachable: false},
	}
	require.NoError(t, c.PutMany(ctx, "DRIVING:6.92710,79.86120", in))

	got, err = c.GetMany(ctx, "DRIVING:6.92710,79.86120", []string{
		"DRIVING:6.93450,79.85010",
		" DRIVING:6.93450,79.85010 ",
		"DRIVING:7.29060,80.63370",
		"DRIVING:0.00000,0.00000",
		"",
	})
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// Direction matters.
	got, err = c.GetMany(ctx, "DRIVING:6.93450,79.85010", []string{"DRIVING:6.92710,79.86120"})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Overwrite.
	in["DRIVING:6.93450,79.85010"] = ports.DistanceResult{DistanceMeters: 1, DurationSeconds: 2, DurationInTrafficSeconds: 3, Reachable: true}
	require.NoError(t, c.PutMany(ctx, "DRIVING:6.92710,79.86120", in))
	got, err = c.GetMany(ctx, "DRIVING:6.92710,79.86120", []string{"DRIVING:6.93450,79.85010"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["DRIVING:6.93450,79.85010"].DistanceMeters)

	assert.Error(t, c.PutMany(ctx, "", in))
	_, err = c.GetMany(ctx, "", []string{"a"})
	assert.Error(t, err)
	assert.Error(t, c.PutMany(ctx, "o", map[string]ports.DistanceResult{"  ": {}}))
}

func TestSqliteCacheHonorsTTL(t *testing.T) {
	ctx := context.Background()
	c := newSqliteCache(t, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.PutMany(ctx, "o", map[string]ports.DistanceResult{"d": {DistanceMeters: 5, Reachable: true}}))

	got, err := c.GetMany(ctx, "o", []string{"d"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	now = now.Add(2 * time.Hour)
	got, err = c.GetMany(ctx, "o", []string{"d"})
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := PurgeExpired(ctx, c.DB, DialectSQLite, cutoff(now, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisCacheHonorsTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Minute)

	require.NoError(t, c.PutMany(ctx, "o", map[string]ports.DistanceResult{"d": {DistanceMeters: 5, Reachable: true}}))
	assert.True(t, mr.Exists(redisKey("o", "d")))

	mr.FastForward(2 * time.Minute)
	got, err := c.GetMany(ctx, "o", []string{"d"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	c := NewRedisDistanceCache(rdb, 0)
	mr.Close()

	_, err := c.GetMany(context.Background(), "o", []string{"d"})
	assert.Error(t, err)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryDistanceCache(2, 0)

	require.NoError(t, c.PutMany(ctx, "o", map[string]ports.DistanceResult{"a": {DistanceMeters: 1}}))
	require.NoError(t, c.PutMany(ctx, "o", map[string]ports.DistanceResult{"b": {DistanceMeters: 2}}))
	require.NoError(t, c.PutMany(ctx, "o", map[string]ports.DistanceResult{"c": {DistanceMeters: 3}}))

	got, err := c.GetMany(ctx, "o", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.NotContains(t, got, "a")
	assert.Contains(t, got, "c")
	assert.Equal(t, 2, c.Len())
}

func TestInitSchemaRejectsUnknownDialect(t *testing.T) {
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	assert.Error(t, InitSchema(context.Background(), conn, Dialect("oracle")))
	assert.Error(t, InitSchema(context.Background(), nil, DialectSQLite))
}
