// Package store provides the persisted key-value backends behind the baseline tracker.
package store

import (
	"context"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
)

// Store is a string key-value store that outlives the process (except memory).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open validates cfg and opens the selected backend.
func Open(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverRedis:
		return NewRedis(cfg)
	case DriverMemory:
		logger.Warn().Msg("Using in-memory store, baselines will not survive this process")
		return NewMemory(), nil
	default:
		return NewSQLite(cfg)
	}
}

// unavailable tags err with the operation that failed, keeping it unwrappable.
func unavailable(phase string, err error) error {
	return errors.New().Wrap(errors.ErrStoreUnavailable, err).WithData(phase)
}
