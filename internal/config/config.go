// Package config reads process configuration from the environment, seeded
// from an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	HTTP struct {
		Addr string
	}
	GRPC struct {
		Addr string
	}
	DatabaseURL string
	Redis       struct {
		Addr     string
		Password string
		Stream   string
	}
	Log struct {
		Level  string
		Format string
	}
	RateBurst        int
	RatePerSec       int
	ResolverInterval time.Duration
	AuthSecret       string
}

// Load reads the environment after applying envFiles (default ".env").
// Missing files are skipped; variables already set win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	cfg.Env = getEnv("GIGSHIELD_ENV", "development")
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.GRPC.Addr = getEnv("GRPC_ADDR", ":9090")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "gigshield:events")
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	cfg.AuthSecret = os.Getenv("GIGSHIELD_AUTH_SECRET")

	var err error
	if cfg.RateBurst, err = getInt("RATE_BURST", 20); err != nil {
		return cfg, err
	}
	if cfg.RatePerSec, err = getInt("RATE_PER_SEC", 10); err != nil {
		return cfg, err
	}
	if cfg.ResolverInterval, err = getDuration("RESOLVER_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.Production() && cfg.AuthSecret == "" {
		return cfg, errors.New("GIGSHIELD_AUTH_SECRET is required in production")
	}
	return cfg, nil
}

// Production reports whether the service runs with production defaults.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def, fmt.Errorf("%s: expected non-negative integer, got %q", key, v)
	}
	return n, nil
}

// getDuration accepts Go durations ("30s") or bare seconds ("30").
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def, fmt.Errorf("%s: expected duration, got %q", key, v)
	}
	return d, nil
}
