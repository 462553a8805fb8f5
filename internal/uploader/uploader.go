// Package uploader — uploader.go
//
// At-least-once upload of skeleton JSON artifacts to Google Cloud Storage
// (spec.md §4.5).
//
// Retry model: the teacher's token bucket (internal/budget/token_bucket.go)
// tracks atomic lifetime counters (consumedTotal, refillCount) alongside
// its core rate-limiting job; Uploader keeps that same "atomic counters
// alongside the core operation" shape for uploadsTotal/failuresTotal,
// without the rate-limiting itself — cloud-sync has no burst to smooth,
// just a bounded number of attempts per artifact with a sleep between them.
//
// Error classification is a four-way split:
//
//	TransientIO — retry with backoff (network blip, 5xx, deadline exceeded)
//	PermanentIO — do not retry (object already exists with different
//	              content, malformed bucket name)
//	Auth        — do not retry, surface loudly (expired/invalid credentials)
//	NotFound    — the local file vanished, or the bucket answered 404;
//	              do not retry
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// ErrorClass categorizes an upload failure for retry decisions.
type ErrorClass int

const (
	ClassTransient ErrorClass = iota
	ClassPermanent
	ClassAuth
	ClassNotFound
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassAuth:
		return "auth"
	case ClassNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Classify maps an error from the storage client or local filesystem
// into an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassTransient // callers must not call Classify(nil)
	}
	if errors.Is(err, os.ErrNotExist) {
		return ClassNotFound
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == 401 || gErr.Code == 403:
			return ClassAuth
		case gErr.Code == 404:
			return ClassNotFound
		case gErr.Code >= 500 || gErr.Code == 429:
			return ClassTransient
		default:
			return ClassPermanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransient
	}

	return ClassPermanent
}

// Config holds the uploader's tunables (spec.md §6).
type Config struct {
	Bucket            string
	RetryAttempts     int
	RetryDelaySeconds float64
	// SkeletonDir is where extracted skeleton JSON documents are written
	// locally (mirrors config.LifecycleConfig.SkeletonOutputDir); the
	// batch helpers derive each event's local path from this directory
	// plus its event_id, since the store itself never persists a local
	// path (see localSkeletonPath).
	SkeletonDir string
}

// Uploader uploads skeleton artifact files to a GCS bucket with bounded,
// classified retry.
type Uploader struct {
	client *storage.Client
	cfg    Config
	log    *zap.Logger

	uploadsTotal  atomic.Uint64
	failuresTotal atomic.Uint64
}

// New constructs an Uploader over an already-authenticated storage.Client.
func New(client *storage.Client, cfg Config, log *zap.Logger) *Uploader {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &Uploader{client: client, cfg: cfg, log: log}
}

// Upload uploads the file at localPath to objectName in the configured
// bucket. Retries ClassTransient failures up to cfg.RetryAttempts times,
// sleeping cfg.RetryDelaySeconds (doubled, capped at 8x) between
// attempts, and stops immediately on any other error class. The sleep is
// interruptible via ctx.
//
// A missing local file fails unconditionally, even when dryRun is true —
// matching the original cloud_sync.upload_skeleton, which checks the
// file exists before ever looking at the dry-run flag. When the file
// exists and dryRun is true, Upload logs its intent and returns nil
// without touching the bucket or the retry/attempt counters.
func (u *Uploader) Upload(ctx context.Context, localPath, objectName string, dryRun bool) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("uploader: local file for %s: %w", objectName, err)
	}
	if dryRun {
		u.log.Info("dry run: would upload",
			zap.String("local_path", localPath),
			zap.String("bucket", u.cfg.Bucket), zap.String("object", objectName))
		return nil
	}

	var lastErr error
	delay := time.Duration(u.cfg.RetryDelaySeconds * float64(time.Second))

	for attempt := 1; attempt <= u.cfg.RetryAttempts; attempt++ {
		err := u.attempt(ctx, localPath, objectName)
		if err == nil {
			u.uploadsTotal.Add(1)
			return nil
		}
		lastErr = err
		class := Classify(err)
		u.log.Warn("upload attempt failed",
			zap.String("object", objectName), zap.Int("attempt", attempt),
			zap.String("class", class.String()), zap.Error(err))

		if class != ClassTransient || attempt == u.cfg.RetryAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			u.failuresTotal.Add(1)
			return ctx.Err()
		}
		if delay < 8*time.Duration(u.cfg.RetryDelaySeconds*float64(time.Second)) {
			delay *= 2
		}
	}

	u.failuresTotal.Add(1)
	return fmt.Errorf("uploader: upload of %s failed after retries: %w", objectName, lastErr)
}

func (u *Uploader) attempt(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	obj := u.client.Bucket(u.cfg.Bucket).Object(objectName)
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// UploadsTotal returns the lifetime count of successful uploads.
func (u *Uploader) UploadsTotal() uint64 { return u.uploadsTotal.Load() }

// FailuresTotal returns the lifetime count of exhausted/non-retryable failures.
func (u *Uploader) FailuresTotal() uint64 { return u.failuresTotal.Load() }
