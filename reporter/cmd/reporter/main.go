package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/metrics"
	"github.com/obsidianstack/slareport/reporter/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	date := flag.String("date", "", "exclusive window end date, YYYY-MM-DD (default: window.end_date or today UTC)")
	only := flag.String("report", "", "run only the report with this name")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Logging))
	slog.Info("slareport starting",
		"config", *configPath,
		"reports", len(cfg.Reports),
		"sink", cfg.Output.Sink,
		"interval", cfg.Schedule.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := metrics.New()

	if cfg.Schedule.Interval <= 0 {
		if err := run(ctx, cfg, rec, *date, *only); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
		return
	}

	// Interval mode: reloads take effect on the next tick.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			current.Store(updated)
			slog.SetDefault(newLogger(updated.Logging))
			slog.Info("config hot-reloaded", "reports", len(updated.Reports))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ticker := time.NewTicker(cfg.Schedule.Interval)
	defer ticker.Stop()
	for {
		if err := run(ctx, current.Load(), rec, *date, *only); err != nil {
			slog.Error("run failed", "err", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("slareport shutting down")
			return
		case <-ticker.C:
		}
	}
}

func run(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, date, only string) error {
	end, err := pipeline.EndDate(cfg, date, time.Now())
	if err != nil {
		return err
	}
	up, err := pipeline.NewUploader(cfg.Output)
	if err != nil {
		return err
	}
	r := pipeline.NewRunner(cfg, pipeline.HTTPSources(cfg.Fetch), up, rec, slog.Default().With("service", "slareport"))
	return r.Run(ctx, end, only)
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
