package store

import (
	"context"
	"fmt"

	fiberredis "github.com/gofiber/storage/redis/v3"

	"codeberg.org/mutker/followerctl/internal/logger"
)

type redisStore struct {
	storage *fiberredis.Storage
}

// NewRedis connects to cfg.RedisURL. Keys are written without expiry.
func NewRedis(cfg Config) (s Store, err error) {
	// The storage constructor pings the server and panics when that fails.
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = unavailable("connect", fmt.Errorf("%v", r))
		}
	}()

	storage := fiberredis.New(fiberredis.Config{
		URL: cfg.RedisURL,
	})

	logger.Debug().Msg("Redis state store connected")

	return &redisStore{storage: storage}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.storage.GetWithContext(ctx, key)
	if err != nil {
		return "", false, unavailable("get", err)
	}
	if len(val) == 0 {
		return "", false, nil
	}
	return string(val), true, nil
}

func (r *redisStore) Set(ctx context.Context, key, value string) error {
	if err := r.storage.SetWithContext(ctx, key, []byte(value), 0); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (r *redisStore) Close() error {
	if err := r.storage.Close(); err != nil {
		return unavailable("close", err)
	}
	return nil
}
