package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/followerctl/internal/config"
	"codeberg.org/mutker/followerctl/internal/fetcher"
	"codeberg.org/mutker/followerctl/internal/logger"
	"codeberg.org/mutker/followerctl/internal/metrics"
	"codeberg.org/mutker/followerctl/internal/pid"
	"codeberg.org/mutker/followerctl/internal/report"
	"codeberg.org/mutker/followerctl/internal/runner"
	"codeberg.org/mutker/followerctl/internal/store"
	"codeberg.org/mutker/followerctl/internal/tracker"
	"github.com/spf13/pflag"
)

var (
	cfg       *config.Config
	state     store.Store
	collector metrics.Collector
)

func init() {
	var err error
	cfg, err = config.Load(os.Args[1:])
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Int("entities", len(cfg.Entities)).Msg("Config loaded")

	for _, e := range cfg.Entities {
		if err := e.Check(); err != nil {
			logger.WarnWithCode(err).Str("entity", e.Key).Msg("Entity source is unusable, it will be reported as unavailable")
		}
	}
}

func main() {
	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.FatalWithCode(err).Str("path", cfg.PIDFile).Msg("Failed to acquire PID file")
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	var err error
	state, err = store.Open(cfg.StoreConfig())
	if err != nil {
		logger.ErrorWithCode(err).Str("driver", cfg.Store.Driver).Msg("Failed to open state store")
		return
	}

	collector, err = metrics.NewService(cfg.MetricsConfig())
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to initialize metrics")
		cleanup()
		return
	}

	r := runner.New(
		fetcher.New(fetcher.WithTimeout(cfg.FetchTimeout), fetcher.WithUserAgent(cfg.UserAgent)),
		tracker.New(state),
		collector,
		report.New(os.Stdout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	r.Loop(ctx, cfg.Entities, cfg.Interval)
	cleanup()
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if collector != nil {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close metrics")
		}
	}
	if state != nil {
		if err := state.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close state store")
		}
	}
	logger.Debug().Msg("Exiting...")
}
