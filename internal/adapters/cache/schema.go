package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Dialect selects the SQL flavour of the distance cache schema.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// InitSchema creates the distance cache table and its lookup index.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	var statements []string
	switch dialect {
	case DialectSQLite:
		statements = []string{`
	CREATE TABLE IF NOT EXISTS distance_cache (
        origin TEXT NOT NULL,
        destination TEXT NOT NULL,
        distance_meters REAL NOT NULL,
        duration_seconds REAL NOT NULL,
        duration_in_traffic_seconds REAL NOT NULL,
        reachable INTEGER NOT NULL,
        updated_at INTEGER NOT NULL,
        PRIMARY KEY (origin, destination)
    );
	`}
	case DialectPostgres:
		statements = []string{`
	CREATE TABLE IF NOT EXISTS distance_cache (
        origin TEXT NOT NULL,
        destination TEXT NOT NULL,
        distance_meters DOUBLE PRECISION NOT NULL,
        duration_seconds DOUBLE PRECISION NOT NULL,
        duration_in_traffic_seconds DOUBLE PRECISION NOT NULL,
        reachable BOOLEAN NOT NULL,
        updated_at BIGINT NOT NULL,
        PRIMARY KEY (origin, destination)
    );
	`}
	default:
		return fmt.Errorf("init schema: unknown dialect %q", dialect)
	}

	statements = append(statements, `
	CREATE INDEX IF NOT EXISTS idx_distance_cache_updated_at
    ON distance_cache(updated_at);
	`)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// PurgeExpired deletes rows last written before the cutoff (unix seconds).
func PurgeExpired(ctx context.Context, db *sql.DB, dialect Dialect, cutoff int64) (int64, error) {
	if db == nil {
		return 0, errors.New("purge cache: DB is nil")
	}
	q := `DELETE FROM distance_cache WHERE updated_at < ?`
	if dialect == DialectPostgres {
		q = `DELETE FROM distance_cache WHERE updated_at < $1`
	}
	res, err := db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: rows affected: %w", err)
	}
	return n, nil
}
