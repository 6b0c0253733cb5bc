package cache

import (
	"context"
	"errors"
	"strings"
	"time"
	"trip-route-service/internal/ports"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryDistanceCache is a bounded in-process LRU with per-entry expiry.
type MemoryDistanceCache struct {
	lru *expirable.LRU[string, ports.DistanceResult]
}

var _ ports.DistanceCache = (*MemoryDistanceCache)(nil)

func NewMemoryDistanceCache(size int, ttl time.Duration) *MemoryDistanceCache {
	if size <= 0 {
		size = 10_000
	}
	return &MemoryDistanceCache{lru: expirable.NewLRU[string, ports.DistanceResult](size, nil, ttl)}
}

func (m *MemoryDistanceCache) GetMany(_ context.Context, origin string, destinations []string) (map[string]ports.DistanceResult, error) {
	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}
	out := make(map[string]ports.DistanceResult, len(destinations))
	for _, d := range uniqueKeys(destinations) {
		if r, ok := m.lru.Get(origin + "|" + d); ok {
			out[d] = r
		}
	}
	return out, nil
}

func (m *MemoryDistanceCache) PutMany(_ context.Context, origin string, results map[string]ports.DistanceResult) error {
	if origin == "" {
		return errors.New("insert distance cache: origin must not be empty")
	}
	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return errors.New("insert distance cache: empty destination key")
		}
		m.lru.Add(origin+"|"+dest, r)
	}
	return nil
}

func (m *MemoryDistanceCache) Len() int { return m.lru.Len() }
