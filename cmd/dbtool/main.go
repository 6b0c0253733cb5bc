package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"
	"trip-route-service/internal/adapters/cache"
	"trip-route-service/internal/config"
	"trip-route-service/internal/platform/db"
	"trip-route-service/internal/platform/obs"

	"go.uber.org/zap"
)

// dbtool prepares the distance cache database and purges expired rows.
//
//	dbtool -backend postgres           create the schema in DATABASE_URL
//	dbtool -backend sqlite -purge      create the schema in DB_PATH and drop rows older than CACHE_TTL
func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	backend := flag.String("backend", cfg.CacheBackend, "cache database: sqlite or postgres")
	purge := flag.Bool("purge", false, "delete rows older than CACHE_TTL after initializing")
	flag.Parse()

	log, err := obs.NewLogger(cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), cfg, *backend, *purge, log); err != nil {
		log.Fatal("dbtool failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, backend string, purge bool, log *zap.Logger) error {
	sqlDB, dialect, err := open(cfg, backend)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	log.Info("initializing distance cache schema", zap.String("backend", backend))
	if err := cache.InitSchema(ctx, sqlDB, dialect); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Info("schema ready")

	if !purge {
		return nil
	}
	cutoff := time.Now().Add(-cfg.CacheTTL).Unix()
	n, err := cache.PurgeExpired(ctx, sqlDB, dialect, cutoff)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	log.Info("purge complete", zap.Int64("rows", n), zap.Duration("ttl", cfg.CacheTTL))
	return nil
}

func open(cfg *config.Config, backend string) (*sql.DB, cache.Dialect, error) {
	switch backend {
	case config.CacheSQLite:
		sqlDB, err := db.OpenSQLite(cfg.DBPath)
		return sqlDB, cache.DialectSQLite, err
	case config.CachePostgres:
		if cfg.DatabaseURL == "" {
			return nil, "", fmt.Errorf("DATABASE_URL is required")
		}
		sqlDB, err := db.Open(cfg.DatabaseURL)
		return sqlDB, cache.DialectPostgres, err
	}
	return nil, "", fmt.Errorf("backend %q has no database schema (want sqlite or postgres)", backend)
}
