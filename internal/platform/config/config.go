package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Token store backends.
const (
	TokenStoreSQLite = "sqlite"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" default:"development"`
	Port       string `env:"PORT" default:"3000"`
	APIBaseURL string `env:"API_BASE_URL"`
	LogLevel   string `env:"LOG_LEVEL" default:"info"`
	LogFormat  string `env:"LOG_FORMAT" default:"text"`

	// AllowedOrigin is the browser origin permitted to open live-update sockets.
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	TokenStore     string `env:"TOKEN_STORE" default:"sqlite"`
	TokenStorePath string `env:"TOKEN_STORE_PATH" default:"jobboard.db"`
	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" default:"jobboard:"`

	// TokenEncryptionKey is a hex-encoded AES-256 key. Empty stores the token
	// in the clear.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT" default:"15s"`
	GatewayRateLimit    float64       `env:"GATEWAY_RATE_LIMIT" default:"20"`
	GatewayRateBurst    int           `env:"GATEWAY_RATE_BURST" default:"40"`
	GatewayRetries      int           `env:"GATEWAY_RETRY_ATTEMPTS" default:"3"`
	GatewayRetryBackoff time.Duration `env:"GATEWAY_RETRY_BACKOFF" default:"200ms"`

	CacheStaleTime        time.Duration `env:"CACHE_STALE_TIME" default:"30s"`
	CacheRetention        time.Duration `env:"CACHE_RETENTION" default:"5m"`
	CacheEvictionInterval time.Duration `env:"CACHE_EVICTION_INTERVAL" default:"1m"`

	LiveMaxConnections int `env:"LIVE_MAX_CONNECTIONS" default:"1000"`
	LiveMaxPerIP       int `env:"LIVE_MAX_PER_IP" default:"20"`

	// LogoutOnUnauthorized forces a logout when any request carrying the
	// current token is answered with 401.
	LogoutOnUnauthorized bool `env:"LOGOUT_ON_UNAUTHORIZED" default:"false"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", cfg.APIBaseURL)
	}
	if cfg.IsProduction() && u.Scheme != "https" {
		return errors.New("API_BASE_URL must use https which is required in production")
	}

	switch cfg.TokenStore {
	case TokenStoreSQLite:
		if cfg.TokenStorePath == "" {
			return errors.New("TOKEN_STORE_PATH is required for the sqlite token store")
		}
	case TokenStoreRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis token store")
		}
	case TokenStoreMemory:
	default:
		return fmt.Errorf("TOKEN_STORE must be one of sqlite, redis, memory, got %q", cfg.TokenStore)
	}

	if cfg.TokenEncryptionKey != "" {
		if key, err := hex.DecodeString(cfg.TokenEncryptionKey); err != nil || len(key) != 32 {
			return errors.New("TOKEN_ENCRYPTION_KEY must be 64 hex characters")
		}
	}

	if cfg.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if cfg.GatewayRateLimit <= 0 || cfg.GatewayRateBurst < 1 {
		return errors.New("GATEWAY_RATE_LIMIT must be positive and GATEWAY_RATE_BURST at least 1")
	}
	if cfg.GatewayRetries < 1 {
		return errors.New("GATEWAY_RETRY_ATTEMPTS must be at least 1")
	}
	if cfg.CacheStaleTime < 0 || cfg.CacheRetention < 0 {
		return errors.New("CACHE_STALE_TIME and CACHE_RETENTION must not be negative")
	}
	if cfg.CacheEvictionInterval <= 0 {
		return errors.New("CACHE_EVICTION_INTERVAL must be positive")
	}
	if cfg.LiveMaxConnections < 0 || cfg.LiveMaxPerIP < 0 {
		return errors.New("LIVE_MAX_CONNECTIONS and LIVE_MAX_PER_IP must not be negative")
	}

	return nil
}
