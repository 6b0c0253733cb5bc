// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the route service.
type Config struct {
	Port     string
	LogLevel string
	LogDev   bool

	// Google Maps Platform
	GoogleMapsAPIKey string

	// Distance cache
	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int
	DBPath       string
	DatabaseURL  string
	RedisAddr    string

	// Navigation
	PathRefreshInterval    time.Duration
	TrafficRefreshInterval time.Duration

	// HTTP
	CORSOrigins       []string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// Cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// LoadDotEnv loads a .env file when present. It reports whether one was found.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:     Get("PORT", "8080"),
		LogLevel: Get("LOG_LEVEL", "info"),
		LogDev:   GetBool("LOG_DEV", false),

		GoogleMapsAPIKey: GoogleMapsAPIKey(),

		CacheBackend: strings.ToLower(Get("CACHE_BACKEND", CacheMemory)),
		CacheTTL:     GetDuration("CACHE_TTL", 15*time.Minute),
		CacheSize:    GetInt("CACHE_SIZE", 50_000),
		DBPath:       Get("DB_PATH", "data/cache.db"),
		DatabaseURL:  Get("DATABASE_URL", ""),
		RedisAddr:    Get("REDIS_ADDR", "localhost:6379"),

		PathRefreshInterval:    GetDuration("NAV_REFRESH_INTERVAL", 30*time.Second),
		TrafficRefreshInterval: GetDuration("TRAFFIC_REFRESH_INTERVAL", 30*time.Second),

		CORSOrigins:       GetList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		ReadHeaderTimeout: GetDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       GetDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:      GetDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       GetDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}
}

// GoogleMapsAPIKey returns the server key, accepting the common alias variable names.
func GoogleMapsAPIKey() string {
	for _, k := range []string{"GOOGLE_MAPS_API_KEY", "GOOGLE_MAPS_KEY", "GOOGLE_API_KEY", "GMAPS_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	if v, err := strconv.Atoi(Get(key, "")); err == nil {
		return v
	}
	return fallback
}

func GetBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(Get(key, "")); err == nil {
		return v
	}
	return fallback
}

// GetDuration accepts Go duration strings ("45s", "2m") or a bare number of seconds.
func GetDuration(key string, fallback time.Duration) time.Duration {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// GetList splits a comma-separated value, dropping empty items.
func GetList(key string, fallback []string) []string {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
