package metrics

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "followerctl"

type service struct {
	cfg      Config
	registry *prometheus.Registry

	followers    *prometheus.GaugeVec
	delta        *prometheus.GaugeVec
	zeroSamples  *prometheus.CounterVec
	updateErrors *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Metrics export disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	s := &service{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		followers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "followers",
			Help:      "Follower count observed in the last pass.",
		}, []string{"entity"}),
		delta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "followers_delta",
			Help:      "Change in follower count since the first sample of the local day.",
		}, []string{"entity"}),
		zeroSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_samples_total",
			Help:      "Samples with a count of zero. Failed fetches are reported as zero.",
		}, []string{"entity"}),
		updateErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_errors_total",
			Help:      "Entities that produced no sample because of a store or configuration error.",
		}, []string{"entity"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed pass.",
		}),
	}

	if err := registerAll(s.registry,
		s.followers, s.delta, s.zeroSamples, s.updateErrors, s.lastRun,
	); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	logger.Debug().
		Str("textfile", cfg.TextfilePath).
		Msg("Metrics service initialized")

	return s, nil
}

func registerAll(reg *prometheus.Registry, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Record(ctx context.Context, obs Observation) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(errors.ErrTimeout, err)
	}

	if obs.Failed {
		s.updateErrors.WithLabelValues(obs.Entity).Inc()
		return nil
	}

	s.followers.WithLabelValues(obs.Entity).Set(float64(obs.Count))
	s.delta.WithLabelValues(obs.Entity).Set(float64(obs.Delta))
	if obs.ZeroCount {
		s.zeroSamples.WithLabelValues(obs.Entity).Inc()
	}
	return nil
}

func (s *service) Flush(ctx context.Context, at time.Time) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(errors.ErrTimeout, err)
	}

	s.lastRun.Set(float64(at.Unix()))

	if err := os.MkdirAll(filepath.Dir(s.cfg.TextfilePath), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrExportMetrics, err)
	}
	if err := prometheus.WriteToTextfile(s.cfg.TextfilePath, s.registry); err != nil {
		return errFactory.Wrap(errors.ErrExportMetrics, err)
	}

	logger.Debug().Str("path", s.cfg.TextfilePath).Msg("Metrics textfile written")
	return nil
}

func (*service) Close() error {
	return nil
}

func (*noopCollector) Record(_ context.Context, _ Observation) error {
	return nil
}

func (*noopCollector) Flush(_ context.Context, _ time.Time) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}
