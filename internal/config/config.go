package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"anoa.com/storerating/pkg/database"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	Database database.Config
	RedisURL string

	MeiliSearchHost string
	MeiliMasterKey  string

	JWTSecret string
	JWTTTL    time.Duration

	RateLimitAuth   int
	RateLimitWindow time.Duration

	StatsCacheTTL     time.Duration
	ReconcileSchedule string

	SeedAdminEmail    string
	SeedAdminPassword string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		Database: database.Config{
			DSN:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASS"),
			Name:     getEnv("DB_NAME", "store_rating"),
			Port:     getEnv("DB_PORT", "5432"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisURL: os.Getenv("REDIS_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1h"),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@storerating.com"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", "Admin@123"),
	}

	cfg.Database.Debug = cfg.AppEnv == "development" && cfg.LogLevel == "debug"

	var err error
	if cfg.Database.MaxOpenConns, err = parseInt("DB_MAX_OPEN_CONNS", "25"); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = parseInt("DB_MAX_IDLE_CONNS", "5"); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxLifetime, err = parseDuration("DB_CONN_MAX_LIFETIME", "30m"); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = parseDuration("JWT_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.RateLimitAuth, err = parseInt("RATE_LIMIT_AUTH", "10"); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = parseDuration("RATE_LIMIT_WINDOW", "1m"); err != nil {
		return nil, err
	}
	if cfg.StatsCacheTTL, err = parseDuration("STATS_CACHE_TTL", "30s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "change-me"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
