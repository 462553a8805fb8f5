// Package uploader — batch.go
//
// Batch operations over the event store, used by the falldetect-cloudsync
// CLI (spec.md §5): upload every pending skeleton artifact, and retry
// every previously-failed one. Clips themselves are never cloud-synced —
// only the extracted skeleton JSON document is (spec.md §1/§4.9).
package uploader

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/store"
)

// ObjectNameFor derives the GCS object name for an event's skeleton
// artifact: YYYY/MM/DD/evt_<confirmed_at>.json, where the date comes
// from the event's ConfirmedAt (UTC) and the filename stem reuses the
// event's own evt_ prefix with its confirmation time formatted to
// millisecond precision — tolerating the fractional seconds a delay-
// confirm timestamp can carry, rather than reusing the already-floored
// event_id string (see DESIGN.md).
func ObjectNameFor(rec store.EventRecord) string {
	t := rec.ConfirmedAt.UTC()
	epoch := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return fmt.Sprintf("%04d/%02d/%02d/evt_%.3f.json", t.Year(), t.Month(), t.Day(), epoch)
}

// localSkeletonPath reconstructs the on-disk path of an event's
// extracted skeleton document. The store never persists a local path
// (only the eventual cloud path, matching the original event_logger
// schema) — file_writer.go names every artifact <dir>/<event_id>.json,
// so the uploader can derive it deterministically from the event_id
// alone.
func localSkeletonPath(dir string, rec store.EventRecord) string {
	return filepath.Join(dir, rec.EventID+".json")
}

// clipUploader is the narrow seam uploadBatch needs: anything that can
// push one local file to one remote object name, optionally as a dry
// run. *Uploader satisfies it against a real bucket; tests satisfy it
// with a fake, so the batch bookkeeping (status transitions, per-row
// isolation) is exercised without a live GCS backend.
type clipUploader interface {
	Upload(ctx context.Context, localPath, objectName string, dryRun bool) error
}

// UploadPending uploads every event currently marked UploadPending,
// updating the store's status after each attempt. A failure on one event
// does not stop the batch — each row is isolated, matching the retention
// sweep's per-row error isolation policy (C10). In dry-run mode, nothing
// is actually uploaded and the store's status is left untouched on
// success (a missing local file still records a failure either way).
func (u *Uploader) UploadPending(ctx context.Context, db *store.DB, dryRun bool) (uploaded, failed int, err error) {
	pending, err := db.QueryPending()
	if err != nil {
		return 0, 0, err
	}
	return uploadBatch(ctx, u, u.log, db, pending, u.cfg.SkeletonDir, dryRun)
}

// RetryFailed retries every event currently marked UploadFailed.
func (u *Uploader) RetryFailed(ctx context.Context, db *store.DB, dryRun bool) (uploaded, failed int, err error) {
	list, err := db.QueryFailed()
	if err != nil {
		return 0, 0, err
	}
	return uploadBatch(ctx, u, u.log, db, list, u.cfg.SkeletonDir, dryRun)
}

// UploadOne uploads a single named event regardless of its current
// status, for the CLI's -event-id flag. Returns false if no such event
// exists; a failed upload returns true with a non-nil error.
func (u *Uploader) UploadOne(ctx context.Context, db *store.DB, eventID string, dryRun bool) (bool, error) {
	rec, err := db.GetByID(eventID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	_, failed, err := uploadBatch(ctx, u, u.log, db, []store.EventRecord{*rec}, u.cfg.SkeletonDir, dryRun)
	if err != nil {
		return false, err
	}
	if failed > 0 {
		return true, fmt.Errorf("uploader: %s was not uploaded (failure recorded in the store)", eventID)
	}
	return true, nil
}

func uploadBatch(ctx context.Context, up clipUploader, log *zap.Logger, db *store.DB, recs []store.EventRecord, skeletonDir string, dryRun bool) (uploaded, failed int, err error) {
	for _, rec := range recs {
		localPath := localSkeletonPath(skeletonDir, rec)
		objectName := ObjectNameFor(rec)

		uploadErr := up.Upload(ctx, localPath, objectName, dryRun)
		if uploadErr != nil {
			log.Error("batch upload failed", zap.String("event_id", rec.EventID), zap.Error(uploadErr))
			// Persisted regardless of dry-run: a missing artifact is a
			// real failure the operator needs to see, not something a
			// dry run should paper over (original cloud_sync.py keeps
			// this check ahead of the dry-run branch).
			if setErr := db.SetUploadStatus(rec.EventID, "", store.UploadFailed, uploadErr.Error()); setErr != nil {
				log.Error("failed to record upload failure", zap.String("event_id", rec.EventID), zap.Error(setErr))
			}
			failed++
			continue
		}
		if dryRun {
			uploaded++
			continue
		}
		if setErr := db.SetUploadStatus(rec.EventID, objectName, store.UploadDone, ""); setErr != nil {
			log.Error("failed to record upload success", zap.String("event_id", rec.EventID), zap.Error(setErr))
		}
		uploaded++
	}
	return uploaded, failed, nil
}
