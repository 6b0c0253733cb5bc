package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	"trip-route-service/internal/adapters/cache"
	"trip-route-service/internal/adapters/google"
	"trip-route-service/internal/api"
	"trip-route-service/internal/config"
	"trip-route-service/internal/navigation"
	"trip-route-service/internal/platform/db"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (Google Maps, distance cache) behind ports and starts the HTTP server.
func main() {
	foundEnv := config.LoadDotEnv()
	cfg := config.Load()

	log, err := obs.NewLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if !foundEnv {
		log.Info("no .env file found (using environment variables)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	deps := api.Deps{
		Navigation: navigation.Config{
			PathRefresh:    cfg.PathRefreshInterval,
			TrafficRefresh: cfg.TrafficRefreshInterval,
		},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	}

	// Without a key only the haversine metric works; external metrics and navigation
	// paths report the provider as unavailable.
	if cfg.GoogleMapsAPIKey == "" {
		log.Warn("GOOGLE_MAPS_API_KEY not set; external metrics, directions and traffic are disabled")
	} else {
		client, err := google.New(cfg.GoogleMapsAPIKey)
		if err != nil {
			return fmt.Errorf("run: google client: %w", err)
		}

		distanceCache, closeCache, err := openDistanceCache(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer closeCache()

		deps.Matrix = client
		if distanceCache != nil {
			deps.Matrix = cache.NewCachedMatrixProvider(client, distanceCache, log)
		}
		deps.Directions = client
		deps.Traffic = client
	}

	router := api.NewRouter(deps)
	defer router.Sessions.Close()

	// Timeouts are tuned for cold-cache matrix requests (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("run: shutdown: %w", err)
	}
	return nil
}

// openDistanceCache builds the configured cache backend. A nil cache means caching is off.
func openDistanceCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (ports.DistanceCache, func(), error) {
	noop := func() {}
	log = log.With(zap.String("backend", cfg.CacheBackend))

	switch cfg.CacheBackend {
	case config.CacheNone:
		log.Info("distance cache disabled")
		return nil, noop, nil

	case config.CacheMemory:
		log.Info("distance cache ready", zap.Int("size", cfg.CacheSize))
		return cache.NewMemoryDistanceCache(cfg.CacheSize, cfg.CacheTTL), noop, nil

	case config.CacheSQLite:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("open distance cache: create %q: %w", dir, err)
			}
		}
		sqlDB, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open distance cache: %w", err)
		}
		if err := cache.InitSchema(ctx, sqlDB, cache.DialectSQLite); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("open distance cache: %w", err)
		}
		log.Info("distance cache ready", zap.String("path", cfg.DBPath))
		return cache.NewSqliteDistanceCache(sqlDB, cfg.CacheTTL), func() { _ = sqlDB.Close() }, nil

	case config.CachePostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("open distance cache: DATABASE_URL is required for the postgres backend")
		}
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open distance cache: %w", err)
		}
		if err := cache.InitSchema(ctx, sqlDB, cache.DialectPostgres); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("open distance cache: %w", err)
		}
		log.Info("distance cache ready")
		return cache.NewSQLDistanceCache(sqlDB, cfg.CacheTTL), func() { _ = sqlDB.Close() }, nil

	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("open distance cache: ping redis %s: %w", cfg.RedisAddr, err)
		}
		log.Info("distance cache ready", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedisDistanceCache(rdb, cfg.CacheTTL), func() { _ = rdb.Close() }, nil
	}

	return nil, nil, fmt.Errorf("open distance cache: unknown backend %q", cfg.CacheBackend)
}
