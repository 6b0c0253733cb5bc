package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "distance_cache:"

type redisEntry struct {
	DistanceMeters           float64 `json:"d"`
	DurationSeconds          float64 `json:"t"`
	DurationInTrafficSeconds float64 `json:"tt"`
	Reachable                bool    `json:"r"`
}

// RedisDistanceCache stores one JSON value per origin->destination pair.
// Entries expire after TTL; a zero TTL keeps them until evicted.
type RedisDistanceCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

var _ ports.DistanceCache = (*RedisDistanceCache)(nil)

func NewRedisDistanceCache(rdb redis.UniversalClient, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{rdb: rdb, ttl: ttl}
}

func redisKey(origin, destination string) string {
	return redisKeyPrefix + origin + "|" + destination
}

func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.redis.GetMany")(&err)

	if c.rdb == nil {
		return nil, errors.New("distance cache: redis client is nil")
	}
	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	keys := make([]string, len(uniq))
	for i, d := range uniq {
		keys[i] = redisKey(origin, d)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get distance cache: mget: %w", err)
	}

	out := make(map[string]ports.DistanceResult, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e redisEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("get distance cache: decode %q: %w", keys[i], err)
		}
		out[uniq[i]] = ports.DistanceResult(e)
	}
	return out, nil
}

func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.cache.redis.PutMany")(&err)

	if c.rdb == nil {
		return errors.New("distance cache: redis client is nil")
	}
	if origin == "" {
		return errors.New("insert distance cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return fmt.Errorf("insert distance cache: empty destination key")
		}
		b, err := json.Marshal(redisEntry(r))
		if err != nil {
			return fmt.Errorf("insert distance cache dest=%q: encode: %w", dest, err)
		}
		pipe.Set(ctx, redisKey(origin, dest), b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert distance cache: pipeline exec: %w", err)
	}
	return nil
}
