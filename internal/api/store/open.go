package store

import (
	"context"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"

	"github.com/grez-lucas/bankapi/internal/api"
	"github.com/grez-lucas/bankapi/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the store selected by cfg. The closer releases any
// connection the store holds.
func Open(ctx context.Context, cfg *config.Config) (api.SessionStore, io.Closer, error) {
	switch cfg.SessionStore {
	case config.StoreFile:
		s, err := NewFile(cfg.SessionDir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil

	case config.StoreRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := goredis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedis(rdb, cfg.SessionTTL), rdb, nil

	case config.StoreMemory, "":
		return NewMemory(), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
