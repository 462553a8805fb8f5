// Package main — cmd/falldetect-cloudsync/main.go
//
// falldetect-cloudsync is a one-shot CLI wrapping internal/uploader for
// manual invocation outside the long-running agent process — useful when
// cloud_sync.upload_on_extract is off, or to retry a backlog after a
// bucket outage.
//
// Usage:
//
//	falldetect-cloudsync -upload-pending
//	falldetect-cloudsync -retry-failed
//	falldetect-cloudsync -event-id evt_1735459200
//	falldetect-cloudsync -status
//	falldetect-cloudsync -upload-pending -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/storage"

	"github.com/kionce57/falldetect/internal/config"
	"github.com/kionce57/falldetect/internal/observability"
	"github.com/kionce57/falldetect/internal/store"
	"github.com/kionce57/falldetect/internal/uploader"
)

func main() {
	configPath := flag.String("config", "/etc/falldetect/config.yaml", "Path to config.yaml")
	uploadPending := flag.Bool("upload-pending", false, "Upload every event currently marked pending")
	retryFailed := flag.Bool("retry-failed", false, "Retry every event currently marked failed")
	eventID := flag.String("event-id", "", "Upload a single event by its event_id, regardless of status")
	status := flag.Bool("status", false, "Print a count of events by upload status and exit")
	dryRun := flag.Bool("dry-run", false, "Log what would be uploaded without touching GCS; a missing local skeleton file is still recorded as failed in the store")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall deadline for the batch")
	flag.Parse()

	if !*uploadPending && !*retryFailed && !*status && *eventID == "" {
		fmt.Fprintln(os.Stderr, "ERROR: one of -upload-pending, -retry-failed, -event-id, or -status is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}
	if !cfg.CloudSync.Enabled {
		fmt.Fprintln(os.Stderr, "ERROR: cloud_sync.enabled is false in config; nothing to do")
		os.Exit(1)
	}

	log, err := observability.BuildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	db, err := store.Open(cfg.StoragePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: event store open failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck

	if *status {
		counts, err := db.CountByStatus()
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: status query failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("events by upload status:")
		for _, s := range []store.UploadStatus{store.UploadPending, store.UploadFailed, store.UploadDone} {
			fmt.Printf("  %-10s %d\n", s, counts[s])
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := storage.NewClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: GCS client init failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close() //nolint:errcheck

	up := uploader.New(client, uploader.Config{
		Bucket:            cfg.CloudSync.GCSBucket,
		RetryAttempts:     cfg.CloudSync.RetryAttempts,
		RetryDelaySeconds: float64(cfg.CloudSync.RetryDelaySecond),
		SkeletonDir:       cfg.Lifecycle.SkeletonOutputDir,
	}, log)

	if *eventID != "" {
		ok, err := up.UploadOne(ctx, db, *eventID, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: upload of %s failed: %v\n", *eventID, err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "ERROR: no such event %s\n", *eventID)
			os.Exit(1)
		}
		fmt.Printf("uploaded %s\n", *eventID)
		return
	}

	var uploaded, failed int
	if *uploadPending {
		uploaded, failed, err = up.UploadPending(ctx, db, *dryRun)
	} else {
		uploaded, failed, err = up.RetryFailed(ctx, db, *dryRun)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: batch query failed: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("cloudsync batch (bucket=%s) [dry run]\n", cfg.CloudSync.GCSBucket)
	} else {
		fmt.Printf("cloudsync batch (bucket=%s)\n", cfg.CloudSync.GCSBucket)
	}
	fmt.Printf("  uploaded: %d\n", uploaded)
	fmt.Printf("  failed:   %d\n", failed)

	if failed > 0 {
		os.Exit(1)
	}
}
