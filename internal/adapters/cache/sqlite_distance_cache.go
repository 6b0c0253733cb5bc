package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"
)

// SQLite backed cache for origin->destination distance results.
// Keys are expected to be consistent (e.g., already normalized)
// by the caller.
type SqliteDistanceCache struct {
	DB  *sql.DB
	TTL time.Duration
	now func() time.Time
}

var _ ports.DistanceCache = (*SqliteDistanceCache)(nil)

func NewSqliteDistanceCache(db *sql.DB, ttl time.Duration) *SqliteDistanceCache {
	return &SqliteDistanceCache{DB: db, TTL: ttl, now: time.Now}
}

// Fetch cached distances for one origin and multiple destinations.
func (s *SqliteDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.sqlite.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("distance cache: db is nil")
	}

	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	ph := make([]string, len(uniq))
	args := make([]any, 0, 2+len(uniq))
	args = append(args, origin, cutoff(s.now(), s.TTL))
	for i, d := range uniq {
		ph[i] = "?"
		args = append(args, d)
	}

	// SQLite does not support binding slices directly in an IN (...) clause.
	// Only the placeholder structure is interpolated; all values remain parameterized.
	q := fmt.Sprintf(`
	SELECT
        destination,
        distance_meters,
        duration_seconds,
        duration_in_traffic_seconds,
        reachable
    FROM distance_cache
    WHERE origin = ?
        AND updated_at >= ?
        AND destination IN (%s);
	`, strings.Join(ph, ","))

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.DistanceResult, len(uniq))
	for rows.Next() {
		var dest string
		var reachable int
		var r ports.DistanceResult
		if err := rows.Scan(&dest, &r.DistanceMeters, &r.DurationSeconds, &r.DurationInTrafficSeconds, &reachable); err != nil {
			return nil, fmt.Errorf("get distance cache: scan rows: %w", err)
		}
		r.Reachable = reachable != 0
		out[dest] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get distance cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many cached distance results for a single origin.
func (s *SqliteDistanceCache) PutMany(ctx context.Context, origin string, results map[string]ports.DistanceResult) (err error) {
	defer obs.Time(ctx, "distance.cache.sqlite.PutMany")(&err)

	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	if origin == "" {
		return errors.New("insert distance cache: origin must not be empty")
	}

	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert distance cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO distance_cache (
        origin,
        destination,
        distance_meters,
        duration_seconds,
        duration_in_traffic_seconds,
        reachable,
        updated_at
    )
    VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert distance cache: db prepare: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return fmt.Errorf("insert distance cache: empty destination key")
		}

		reachable := 0
		if r.Reachable {
			reachable = 1
		}
		if _, err := stmt.ExecContext(ctx, origin, dest, r.DistanceMeters, r.DurationSeconds, r.DurationInTrafficSeconds, reachable, now); err != nil {
			return fmt.Errorf("insert distance cache dest=%q: %w", dest, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert distance cache commit: %w", err)
	}

	return nil
}
