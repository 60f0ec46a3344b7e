// Package runner drives fetch, update and report for every configured entity.
package runner

import (
	"context"
	"time"

	"codeberg.org/mutker/followerctl/internal/config"
	"codeberg.org/mutker/followerctl/internal/fetcher"
	"codeberg.org/mutker/followerctl/internal/logger"
	"codeberg.org/mutker/followerctl/internal/metrics"
	"codeberg.org/mutker/followerctl/internal/report"
	"codeberg.org/mutker/followerctl/internal/tracker"
	"github.com/google/uuid"
)

// CountFetcher reads one entity's count. Failures come back as 0.
type CountFetcher interface {
	Fetch(ctx context.Context, src fetcher.Source) int64
}

// Outcome is one entity's result from a pass.
type Outcome struct {
	Entity config.Entity
	Sample tracker.Sample
	Err    error
}

type Runner struct {
	fetcher  CountFetcher
	tracker  *tracker.Tracker
	metrics  metrics.Collector
	reporter *report.Reporter
	now      func() time.Time
}

type Option func(*Runner)

// WithClock replaces time.Now, for tests that cross midnight.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func New(f CountFetcher, t *tracker.Tracker, m metrics.Collector, rep *report.Reporter, opts ...Option) *Runner {
	r := &Runner{
		fetcher:  f,
		tracker:  t,
		metrics:  m,
		reporter: rep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce processes entities one after another. A failing entity is reported
// as such and does not stop the ones after it.
func (r *Runner) RunOnce(ctx context.Context, entities []config.Entity) []Outcome {
	runID := uuid.NewString()
	logger.Debug().Str("run_id", runID).Int("entities", len(entities)).Msg("Pass started")

	outcomes := make([]Outcome, 0, len(entities))
	entries := make([]report.Entry, 0, len(entities))

	for _, e := range entities {
		if ctx.Err() != nil {
			break
		}

		out := r.runEntity(ctx, runID, e)
		outcomes = append(outcomes, out)
		entries = append(entries, report.Entry{
			Name:    e.Name,
			Link:    e.Link,
			Color:   e.Color,
			Current: out.Sample.Current,
			Delta:   out.Sample.Delta,
			Err:     out.Err,
		})
	}

	if err := r.reporter.Write(entries); err != nil {
		logger.Error().Err(err).Msg("Failed to write report")
	}

	if err := r.metrics.Flush(ctx, r.now()); err != nil {
		logger.ErrorWithCode(err).Str("run_id", runID).Msg("Failed to export metrics")
	}

	logger.Debug().Str("run_id", runID).Msg("Pass finished")
	return outcomes
}

func (r *Runner) runEntity(ctx context.Context, runID string, e config.Entity) Outcome {
	out := Outcome{Entity: e}

	// Malformed descriptors fail before any network or store access.
	if err := e.Check(); err != nil {
		out.Err = err
		r.fail(ctx, runID, e, err)
		return out
	}

	count := r.fetcher.Fetch(ctx, e.Source)

	sample, err := r.tracker.Update(ctx, e.Key, count, r.now())
	if err != nil {
		out.Err = err
		r.fail(ctx, runID, e, err)
		return out
	}
	out.Sample = sample

	logger.Info().
		Str("run_id", runID).
		Str("entity", e.Key).
		Int64("followers", sample.Current).
		Int64("delta", sample.Delta).
		Bool("rolled_over", sample.RolledOver).
		Msg("")

	if err := r.metrics.Record(ctx, metrics.Observation{
		Entity:    e.Key,
		Count:     sample.Current,
		Delta:     sample.Delta,
		ZeroCount: count == 0,
	}); err != nil {
		logger.ErrorWithCode(err).Str("entity", e.Key).Msg("Failed to record metrics")
	}

	return out
}

func (r *Runner) fail(ctx context.Context, runID string, e config.Entity, err error) {
	logger.ErrorWithCode(err).
		Str("run_id", runID).
		Str("entity", e.Key).
		Msg("Entity update failed")

	if err := r.metrics.Record(ctx, metrics.Observation{Entity: e.Key, Failed: true}); err != nil {
		logger.ErrorWithCode(err).Str("entity", e.Key).Msg("Failed to record metrics")
	}
}

// Loop runs a pass immediately and then every interval until ctx is done.
func (r *Runner) Loop(ctx context.Context, entities []config.Entity, interval time.Duration) {
	r.RunOnce(ctx, entities)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx, entities)
		}
	}
}
