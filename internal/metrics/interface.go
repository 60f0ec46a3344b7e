package metrics

import (
	"context"
	"time"
)

// Collector receives the outcome of every tracked entity and exports it.
type Collector interface {
	Record(ctx context.Context, obs Observation) error
	// Flush writes everything recorded so far, stamped with the pass time.
	Flush(ctx context.Context, at time.Time) error
	Close() error
}

// Observation is one entity's result from a pass.
type Observation struct {
	Entity string
	Count  int64
	Delta  int64
	// ZeroCount marks a count of 0, which is also what a failed fetch reports.
	ZeroCount bool
	// Failed is set when no sample was produced at all; Count and Delta are ignored.
	Failed bool
}
