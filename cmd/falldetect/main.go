// Package main — cmd/falldetect/main.go
//
// falldetect agent entrypoint.
//
// Startup sequence:
//  1. Parse flags, load and validate config from /etc/falldetect/config.yaml.
//  2. Initialise structured logger (zap, level and format from config).
//  3. Open BoltDB event store.
//  4. Start Prometheus metrics server (127.0.0.1:9092 by default).
//  5. Build the capture source, detector, and conductor.
//  6. Start the retention sweeper on its configured schedule.
//  7. Register SIGHUP handler that re-reads and validates the config
//     (nothing is applied live).
//  8. Run the capture loop until SIGINT/SIGTERM.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel the root context (stops the capture loop and metrics server).
//  2. Stop the retention sweeper.
//  3. Close the conductor (cancels pending clip timers, drains skeleton
//     extraction workers).
//  4. Close the event store.
//  5. Flush the logger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/capture"
	"github.com/kionce57/falldetect/internal/config"
	"github.com/kionce57/falldetect/internal/observability"
	"github.com/kionce57/falldetect/internal/pipeline"
	"github.com/kionce57/falldetect/internal/retention"
	"github.com/kionce57/falldetect/internal/store"

	_ "github.com/kionce57/falldetect/contrib" // registers the "mock" reference engine
)

func main() {
	configPath := flag.String("config", "/etc/falldetect/config.yaml", "Path to config.yaml")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("falldetect %s (commit=%s built=%s)\n", config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := observability.BuildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("falldetect starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(cfg.StoragePath)
	if err != nil {
		log.Fatal("event store open failed", zap.Error(err), zap.String("path", cfg.StoragePath))
	}
	defer db.Close() //nolint:errcheck
	log.Info("event store opened", zap.String("path", cfg.StoragePath))

	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	source := capture.NewFFmpegSource(cfg.Camera.Source, cfg.Camera.Resolution[0], cfg.Camera.Resolution[1], cfg.Camera.FPS)

	conductor, err := pipeline.New(cfg, db, metrics, source, log)
	if err != nil {
		log.Fatal("pipeline construction failed", zap.Error(err))
	}
	defer conductor.Close()

	var sweeper *retention.Sweeper
	if cfg.Lifecycle.CleanupEnabled {
		sweeper = retention.New(db, retention.Config{
			RetentionDays: cfg.Lifecycle.ClipRetentionDays,
			SweepInterval: time.Duration(cfg.Lifecycle.CleanupScheduleHours) * time.Hour,
		}, log)
		sweeper.SetResultHook(func(r retention.Result) {
			metrics.RetentionDeletedTotal.Add(float64(r.Deleted))
			metrics.RetentionFreedBytes.Add(float64(r.Freed))
			metrics.RetentionSkippedTotal.Add(float64(r.Skipped))
		})
		sweeper.Start()
		defer sweeper.Close()
		log.Info("retention sweeper started", zap.Int("retention_days", cfg.Lifecycle.ClipRetentionDays))
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			log.Info("config hot-reload successful",
				zap.Float64("new_fall_threshold", newCfg.Analysis.FallThreshold),
				zap.Float64("new_delay_sec", newCfg.Analysis.DelaySec))
			// Destructive fields (camera source, buffer_seconds, storage_path)
			// require a restart; only thresholds and log level would be
			// applied live in a fuller implementation.
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- conductor.Run(ctx) }()

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.Error("capture loop exited", zap.Error(err))
		}
	}

	log.Info("falldetect shutdown complete")
}
