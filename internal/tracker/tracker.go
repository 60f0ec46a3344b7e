// Package tracker keeps a once-per-day baseline for each tracked counter and
// reports how far the live value has moved from it.
package tracker

import (
	"context"
	"strconv"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
)

// KeyValueStore is the persisted state the tracker reads and writes.
// Get reports found=false for a key that was never set.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Sample is the outcome of one update. Only Current and Delta are meant for
// presentation; the rest is for logs.
type Sample struct {
	Key        string
	Current    int64
	Delta      int64
	Baseline   int64
	RolledOver bool
}

type Tracker struct {
	store KeyValueStore
}

func New(store KeyValueStore) *Tracker {
	return &Tracker{store: store}
}

// BaselineKey is where the day's reference count for entityKey lives.
func BaselineKey(entityKey string) string {
	return entityKey + ".baseline"
}

// LastUpdateKey is where the millisecond timestamp of the last rollover lives.
func LastUpdateKey(entityKey string) string {
	return entityKey + ".last_update"
}

// StartOfDay returns local midnight of t in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Update records current for entityKey as of now and returns the delta against
// the day's baseline. The first update after local midnight replaces the
// baseline with current, so it always reports a delta of 0.
func (t *Tracker) Update(ctx context.Context, entityKey string, current int64, now time.Time) (Sample, error) {
	errFactory := errors.New()

	if entityKey == "" {
		return Sample{}, errFactory.WithData(errors.ErrInvalidConfig, "empty entity key")
	}

	startOfToday := StartOfDay(now)

	lastUpdate, lastState, err := t.readInt(ctx, LastUpdateKey(entityKey))
	if err != nil {
		return Sample{}, err
	}
	baseline, baseState, err := t.readInt(ctx, BaselineKey(entityKey))
	if err != nil {
		return Sample{}, err
	}

	// A value that is present but unreadable resets the entity.
	if lastState == valueCorrupt || baseState == valueCorrupt {
		logger.Warn().
			Str("entity", entityKey).
			Msg("Stored baseline is unreadable, re-initializing")
		lastState, baseState = valueAbsent, valueAbsent
	}

	lastUpdateTime := time.UnixMilli(0)
	if lastState == valuePresent {
		lastUpdateTime = time.UnixMilli(lastUpdate)
	}
	if baseState != valuePresent {
		baseline = current
	}

	sample := Sample{Key: entityKey, Current: current}

	if !now.Before(startOfToday) && lastUpdateTime.Before(startOfToday) {
		if err := t.write(ctx, BaselineKey(entityKey), strconv.FormatInt(current, 10)); err != nil {
			return Sample{}, err
		}
		if err := t.write(ctx, LastUpdateKey(entityKey), strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
			return Sample{}, err
		}
		baseline = current
		sample.RolledOver = true

		logger.Info().
			Str("entity", entityKey).
			Int64("baseline", current).
			Time("last_update", lastUpdateTime).
			Msg("Daily baseline rolled over")
	}

	sample.Baseline = baseline
	sample.Delta = current - baseline

	logger.Debug().
		Str("entity", entityKey).
		Int64("current", sample.Current).
		Int64("baseline", sample.Baseline).
		Int64("delta", sample.Delta).
		Msg("Sample updated")

	return sample, nil
}

type valueState int

const (
	valueAbsent valueState = iota
	valuePresent
	valueCorrupt
)

func (t *Tracker) readInt(ctx context.Context, key string) (int64, valueState, error) {
	raw, found, err := t.store.Get(ctx, key)
	if err != nil {
		return 0, valueAbsent, errors.New().Wrap(errors.ErrStoreUnavailable, err).WithMessage("read " + key)
	}
	if !found {
		return 0, valueAbsent, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, valueCorrupt, nil
	}
	return n, valuePresent, nil
}

func (t *Tracker) write(ctx context.Context, key, value string) error {
	if err := t.store.Set(ctx, key, value); err != nil {
		return errors.New().Wrap(errors.ErrStoreUnavailable, err).WithMessage("write " + key)
	}
	return nil
}
