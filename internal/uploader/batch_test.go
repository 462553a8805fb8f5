package uploader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeClipUploader satisfies clipUploader without touching a real bucket:
// it either succeeds, or fails for a configured set of object names.
type fakeClipUploader struct {
	mu       sync.Mutex
	calls    []string
	dryRuns  []bool
	failObjs map[string]error
}

func (f *fakeClipUploader) Upload(ctx context.Context, localPath, objectName string, dryRun bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, objectName)
	f.dryRuns = append(f.dryRuns, dryRun)
	if err, ok := f.failObjs[objectName]; ok {
		return err
	}
	return nil
}

// insertPendingEvent writes a confirmed event row plus a real local
// skeleton JSON file under skeletonDir, and marks the skeleton upload
// pending — the state uploadBatch's QueryPending expects to find.
func insertPendingEvent(t *testing.T, db *store.DB, skeletonDir, eventID string, confirmedAt time.Time) {
	t.Helper()
	rec := store.EventRecord{EventID: eventID, ConfirmedAt: confirmedAt}
	if err := db.InsertOrReplace(rec); err != nil {
		t.Fatalf("InsertOrReplace(%q) error: %v", eventID, err)
	}
	path := filepath.Join(skeletonDir, eventID+".json")
	if err := os.WriteFile(path, []byte(`{"event_id":"`+eventID+`"}`), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) error: %v", path, err)
	}
	if err := db.SetUploadStatus(eventID, "", store.UploadPending, ""); err != nil {
		t.Fatalf("SetUploadStatus(%q) error: %v", eventID, err)
	}
}

func TestUploadBatch_AllSucceedMarksUploaded(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	now := time.Now()
	insertPendingEvent(t, db, dir, "evt-1", now)
	insertPendingEvent(t, db, dir, "evt-2", now.Add(time.Second))

	up := &fakeClipUploader{}
	recs, err := db.QueryPending()
	if err != nil {
		t.Fatalf("QueryPending() error: %v", err)
	}
	uploaded, failed, err := uploadBatch(context.Background(), up, zap.NewNop(), db, recs, dir, false)
	if err != nil {
		t.Fatalf("uploadBatch() error: %v", err)
	}
	if uploaded != 2 || failed != 0 {
		t.Errorf("uploaded=%d failed=%d, want 2/0", uploaded, failed)
	}

	counts, err := db.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus() error: %v", err)
	}
	if counts[store.UploadDone] != 2 {
		t.Errorf("CountByStatus()[UploadDone] = %d, want 2", counts[store.UploadDone])
	}

	rec, err := db.GetByID("evt-1")
	if err != nil || rec == nil {
		t.Fatalf("GetByID(evt-1) = %v, %v", rec, err)
	}
	if rec.SkeletonCloudPath == "" {
		t.Error("expected SkeletonCloudPath to be recorded on success")
	}
}

func TestUploadBatch_PartialFailureIsolatesRows(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	now := time.Now()
	insertPendingEvent(t, db, dir, "evt-ok", now)
	insertPendingEvent(t, db, dir, "evt-bad", now.Add(time.Second))

	okRec, _ := db.GetByID("evt-ok")
	badRec, _ := db.GetByID("evt-bad")
	up := &fakeClipUploader{failObjs: map[string]error{
		ObjectNameFor(*badRec): errors.New("network blip"),
	}}
	recs := []store.EventRecord{*okRec, *badRec}
	uploaded, failed, err := uploadBatch(context.Background(), up, zap.NewNop(), db, recs, dir, false)
	if err != nil {
		t.Fatalf("uploadBatch() error: %v", err)
	}
	if uploaded != 1 || failed != 1 {
		t.Errorf("uploaded=%d failed=%d, want 1/1", uploaded, failed)
	}

	got, err := db.GetByID("evt-ok")
	if err != nil || got == nil {
		t.Fatalf("GetByID(evt-ok) = %v, %v", got, err)
	}
	if got.UploadStatus != store.UploadDone {
		t.Errorf("evt-ok status = %v, want UploadDone", got.UploadStatus)
	}

	got, err = db.GetByID("evt-bad")
	if err != nil || got == nil {
		t.Fatalf("GetByID(evt-bad) = %v, %v", got, err)
	}
	if got.UploadStatus != store.UploadFailed {
		t.Errorf("evt-bad status = %v, want UploadFailed", got.UploadStatus)
	}
	if got.UploadAttempts != 1 {
		t.Errorf("evt-bad UploadAttempts = %d, want 1", got.UploadAttempts)
	}
	if got.SkeletonUploadError == "" {
		t.Error("expected SkeletonUploadError to be persisted on failure")
	}
}

func TestUploadBatch_MissingLocalFileFails(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	if err := db.InsertOrReplace(store.EventRecord{EventID: "evt-no-file", ConfirmedAt: time.Now()}); err != nil {
		t.Fatalf("InsertOrReplace() error: %v", err)
	}
	rec, _ := db.GetByID("evt-no-file")

	up := &fakeClipUploader{}
	uploaded, failed, err := uploadBatch(context.Background(), up, zap.NewNop(), db, []store.EventRecord{*rec}, dir, false)
	if err != nil {
		t.Fatalf("uploadBatch() error: %v", err)
	}
	if uploaded != 0 || failed != 1 {
		t.Errorf("uploaded=%d failed=%d, want 0/1 for a row with no local skeleton file", uploaded, failed)
	}
}

func TestUploadBatch_DryRunSkipsStoreWriteOnSuccess(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	insertPendingEvent(t, db, dir, "evt-dry", time.Now())

	rec, _ := db.GetByID("evt-dry")
	up := &fakeClipUploader{}
	uploaded, failed, err := uploadBatch(context.Background(), up, zap.NewNop(), db, []store.EventRecord{*rec}, dir, true)
	if err != nil {
		t.Fatalf("uploadBatch() error: %v", err)
	}
	if uploaded != 1 || failed != 0 {
		t.Errorf("uploaded=%d failed=%d, want 1/0", uploaded, failed)
	}
	if !up.dryRuns[0] {
		t.Error("expected Upload() to be called with dryRun=true")
	}

	got, _ := db.GetByID("evt-dry")
	if got.UploadStatus != store.UploadPending {
		t.Errorf("dry run must not touch the store on success, status = %v", got.UploadStatus)
	}
}

func TestUploadBatch_DryRunStillPersistsMissingFileFailure(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	if err := db.InsertOrReplace(store.EventRecord{EventID: "evt-missing", ConfirmedAt: time.Now()}); err != nil {
		t.Fatalf("InsertOrReplace() error: %v", err)
	}
	rec, _ := db.GetByID("evt-missing")

	up := &fakeClipUploader{}
	_, failed, err := uploadBatch(context.Background(), up, zap.NewNop(), db, []store.EventRecord{*rec}, dir, true)
	if err != nil {
		t.Fatalf("uploadBatch() error: %v", err)
	}
	if failed != 1 {
		t.Errorf("expected dry-run missing-file case to still count as failed, got %d", failed)
	}

	got, _ := db.GetByID("evt-missing")
	if got.UploadStatus != store.UploadFailed {
		t.Errorf("expected missing-file failure to persist even in dry run, status = %v", got.UploadStatus)
	}
}

func TestRetryFailed_RetriesOnlyFailedStatusEvents(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	insertPendingEvent(t, db, dir, "evt-retry", time.Now())
	if err := db.SetUploadStatus("evt-retry", "", store.UploadFailed, "previous blip"); err != nil {
		t.Fatalf("SetUploadStatus() error: %v", err)
	}

	up := &fakeClipUploader{}
	recs, err := db.QueryFailed()
	if err != nil {
		t.Fatalf("QueryFailed() error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("QueryFailed() returned %d records, want 1", len(recs))
	}
	uploaded, failed, err := uploadBatch(context.Background(), up, zap.NewNop(), db, recs, dir, false)
	if err != nil {
		t.Fatalf("uploadBatch() error: %v", err)
	}
	if uploaded != 1 || failed != 0 {
		t.Errorf("uploaded=%d failed=%d, want 1/0", uploaded, failed)
	}

	rec, err := db.GetByID("evt-retry")
	if err != nil || rec == nil {
		t.Fatalf("GetByID() = %v, %v", rec, err)
	}
	if rec.UploadStatus != store.UploadDone {
		t.Errorf("status after successful retry = %v, want UploadDone", rec.UploadStatus)
	}
	if rec.SkeletonUploadError != "" {
		t.Errorf("SkeletonUploadError = %q, want cleared after success", rec.SkeletonUploadError)
	}
}

func TestObjectNameFor_DerivesFromConfirmedAt(t *testing.T) {
	rec := store.EventRecord{ConfirmedAt: time.Date(2024, 12, 29, 12, 0, 0, 0, time.UTC)}
	got := ObjectNameFor(rec)
	want := "2024/12/29/evt_1735473600.000.json"
	if got != want {
		t.Errorf("ObjectNameFor() = %q, want %q", got, want)
	}
}

func TestLocalSkeletonPath_JoinsEventID(t *testing.T) {
	rec := store.EventRecord{EventID: "evt-123"}
	got := localSkeletonPath("/var/lib/falldetect/skeletons", rec)
	want := "/var/lib/falldetect/skeletons/evt-123.json"
	if got != want {
		t.Errorf("localSkeletonPath() = %q, want %q", got, want)
	}
}
