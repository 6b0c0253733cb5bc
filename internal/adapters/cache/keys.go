package cache

import (
	"strings"
	"time"
)

// uniqueKeys trims and de-duplicates destination keys, dropping empty ones.
func uniqueKeys(destinations []string) []string {
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(destinations))
	for _, d := range destinations {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}

		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		uniq = append(uniq, d)
	}
	return uniq
}

// cutoff returns the oldest accepted updated_at, or 0 when entries never expire.
func cutoff(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(-ttl).Unix()
}
