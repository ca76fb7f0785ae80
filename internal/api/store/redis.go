package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/grez-lucas/bankapi/internal/api"
)

const defaultKeyPrefix = "bankapi:session:"

// Redis shares sessions between processes and hosts. A zero TTL keeps
// records until they are deleted.
type Redis struct {
	rdb    goredis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb goredis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{
		rdb:    rdb,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

func (r *Redis) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}
	return data, nil
}

func (r *Redis) Save(ctx context.Context, id string, data []byte) error {
	if err := r.rdb.Set(ctx, r.prefix+id, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}
