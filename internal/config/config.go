package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	BaseURI    string `env:"BANKAPI_BASE_URI"`
	APIVersion string `env:"BANKAPI_VERSION" envDefault:"v4"`

	Debug    bool   `env:"BANKAPI_DEBUG" envDefault:"false"`
	DebugLog string `env:"BANKAPI_DEBUG_LOG" envDefault:"bankapi.log"`

	SessionStore string        `env:"BANKAPI_SESSION_STORE" envDefault:"memory"`
	SessionDir   string        `env:"BANKAPI_SESSION_DIR"`
	SessionTTL   time.Duration `env:"BANKAPI_SESSION_TTL" envDefault:"0s"`
	RedisURL     string        `env:"REDIS_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.SessionStore {
	case StoreMemory:
	case StoreFile:
		if cfg.SessionDir == "" {
			return errors.New("BANKAPI_SESSION_DIR is required for the file session store")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis session store")
		}
	default:
		return fmt.Errorf("BANKAPI_SESSION_STORE must be one of memory, file, redis; got %q", cfg.SessionStore)
	}

	if cfg.SessionTTL < 0 {
		return errors.New("BANKAPI_SESSION_TTL must not be negative")
	}

	if cfg.APIVersion == "" {
		return errors.New("BANKAPI_VERSION must not be empty")
	}

	return nil
}
