// Package main — cmd/falldetect-cleanup/main.go
//
// falldetect-cleanup is a one-shot CLI wrapping internal/retention.Sweeper
// for manual invocation (cron, operator shell) outside the long-running
// agent process. It loads the same config.yaml as falldetect so retention
// policy stays in one place.
//
// Usage:
//
//	falldetect-cleanup -config /etc/falldetect/config.yaml
//	falldetect-cleanup -dry-run
//	falldetect-cleanup -retention-days 7
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/config"
	"github.com/kionce57/falldetect/internal/observability"
	"github.com/kionce57/falldetect/internal/retention"
	"github.com/kionce57/falldetect/internal/store"
)

func main() {
	configPath := flag.String("config", "/etc/falldetect/config.yaml", "Path to config.yaml")
	dryRun := flag.Bool("dry-run", false, "Report what would be deleted without touching files or the store")
	retentionDays := flag.Int("retention-days", 0, "Override lifecycle.clip_retention_days from config (0 = use config value)")
	quiet := flag.Bool("quiet", false, "Suppress per-run log output, print only the summary")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if *quiet {
		log = zap.NewNop()
	} else {
		log, err = observability.BuildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync() //nolint:errcheck

	db, err := store.Open(cfg.StoragePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: event store open failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck

	days := cfg.Lifecycle.ClipRetentionDays
	if *retentionDays > 0 {
		days = *retentionDays
	}

	sweeper := retention.New(db, retention.Config{
		RetentionDays: days,
		DryRun:        *dryRun,
	}, log)

	result := sweeper.RunNow()

	label := "DELETED"
	if *dryRun {
		label = "WOULD DELETE"
	}
	fmt.Printf("retention sweep (retention_days=%d, dry_run=%v)\n", days, *dryRun)
	fmt.Printf("  %s:  %d clips (%d bytes)\n", label, result.Deleted, result.Freed)
	fmt.Printf("  SKIPPED: %d (already absent)\n", result.Skipped)
	fmt.Printf("  ERRORS:  %d\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("    - %v\n", e)
	}

	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}
