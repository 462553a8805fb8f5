// Package store — store.go
//
// BoltDB-backed persistent storage for fall events.
//
// Schema (BoltDB bucket layout):
//
//	/events
//	    key:   event_id (string, as generated by the escalation machine)
//	    value: JSON-encoded EventRecord
//
//	/by_confirmed_at
//	    key:   RFC3339Nano(confirmed_at) + "_" + event_id  [sortable]
//	    value: event_id
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// The secondary index exists because bbolt buckets only iterate in key
// order: to answer "events confirmed before time T" (the retention
// sweep's expired-clip query) or "events in confirmation order" (the
// cloud-sync CLI's pending/failed queries) without a full bucket scan,
// a sortable-by-time key is required. This is the same trick the teacher
// uses for its audit ledger (RFC3339Nano + zero-padded PID).
//
// Consistency model:
//   - Single-process, single-writer (bbolt does not support concurrent
//     writers; this library is safe for concurrent readers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Failure modes:
//   - Database file corruption: bbolt detects via CRC and returns an
//     error on Open(). The agent logs a fatal event and refuses to start.
//   - Disk full: bbolt.Update() returns an error, surfaced to the caller;
//     the in-memory escalation state is unaffected, so the next tick can
//     retry the persist.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/falldetect/events.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketEvents        = "events"
	bucketByConfirmedAt = "by_confirmed_at"
	bucketMeta          = "meta"
)

// UploadStatus is the cloud-sync state of an event's skeleton artifact.
// Clips themselves are never uploaded — only the extracted skeleton JSON
// document is cloud-synced (spec.md §1/§4.9).
type UploadStatus string

const (
	UploadNone    UploadStatus = ""         // no skeleton artifact yet, or upload not attempted
	UploadPending UploadStatus = "pending"
	UploadDone    UploadStatus = "uploaded"
	UploadFailed  UploadStatus = "failed"
)

// EventRecord is the persisted form of a fall event.
type EventRecord struct {
	EventID           string       `json:"event_id"`
	DetectedAt        time.Time    `json:"detected_at"`
	ConfirmedAt       time.Time    `json:"confirmed_at"`
	RecoveredAt       *time.Time   `json:"recovered_at,omitempty"`
	Confidence        float64      `json:"confidence"`
	NotificationCount int          `json:"notification_count"`
	ClipPath          string       `json:"clip_path,omitempty"`
	SkeletonCloudPath string       `json:"skeleton_cloud_path,omitempty"`
	// UploadStatus tracks skeleton_upload_status, not the clip.
	UploadStatus        UploadStatus `json:"skeleton_upload_status"`
	SkeletonUploadError string       `json:"skeleton_upload_error,omitempty"`
	UploadAttempts      int          `json:"upload_attempts"`
	// CreatedAt is stamped once, at first confirmation, and never
	// touched again — find_expired_clips keys on this, not ConfirmedAt,
	// so a re-notification (which leaves ConfirmedAt unchanged anyway)
	// can never perturb retention accounting.
	CreatedAt time.Time `json:"created_at"`
}

// DB wraps a BoltDB instance with typed accessors for fall event records.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the BoltDB database at the given path,
// initialises all required buckets, and verifies the schema version.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketEvents, bucketByConfirmedAt, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, agent requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// confirmedAtKey constructs a sortable key over (confirmed_at, event_id).
// Lexicographic sort on RFC3339Nano strings is chronological sort.
func confirmedAtKey(t time.Time, eventID string) []byte {
	return []byte(fmt.Sprintf("%s_%s", t.UTC().Format(time.RFC3339Nano), eventID))
}

// InsertOrReplace writes or overwrites an event record, keeping the
// by_confirmed_at secondary index consistent. CreatedAt defaults to
// ConfirmedAt and NotificationCount defaults to 1 when the caller leaves
// them zero, matching spec.md §3's "notification_count ≥ 1" invariant
// and the original event_logger's practice of stamping created_at at
// the same moment as the first confirmation.
func (d *DB) InsertOrReplace(rec EventRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.ConfirmedAt
	}
	if rec.NotificationCount == 0 {
		rec.NotificationCount = 1
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("InsertOrReplace marshal: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		events := tx.Bucket([]byte(bucketEvents))
		idx := tx.Bucket([]byte(bucketByConfirmedAt))

		if old := events.Get([]byte(rec.EventID)); old != nil {
			var prev EventRecord
			if err := json.Unmarshal(old, &prev); err == nil {
				if err := idx.Delete(confirmedAtKey(prev.ConfirmedAt, prev.EventID)); err != nil {
					return fmt.Errorf("InsertOrReplace delete old index: %w", err)
				}
			}
		}
		if err := events.Put([]byte(rec.EventID), data); err != nil {
			return fmt.Errorf("InsertOrReplace put event: %w", err)
		}
		key := confirmedAtKey(rec.ConfirmedAt, rec.EventID)
		if err := idx.Put(key, []byte(rec.EventID)); err != nil {
			return fmt.Errorf("InsertOrReplace put index: %w", err)
		}
		return nil
	})
}

// GetByID returns the event record for the given ID, or (nil, nil) if not found.
func (d *DB) GetByID(eventID string) (*EventRecord, error) {
	var rec EventRecord
	found := false
	err := d.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketEvents)).Get([]byte(eventID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("GetByID(%q): %w", eventID, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// mutate loads an event, applies fn, and persists the result. Returns an
// error if the event does not exist.
func (d *DB) mutate(eventID string, fn func(*EventRecord)) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		events := tx.Bucket([]byte(bucketEvents))
		data := events.Get([]byte(eventID))
		if data == nil {
			return fmt.Errorf("mutate(%q): event not found", eventID)
		}
		var rec EventRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("mutate(%q) unmarshal: %w", eventID, err)
		}
		fn(&rec)

		newData, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("mutate(%q) marshal: %w", eventID, err)
		}
		if err := events.Put([]byte(eventID), newData); err != nil {
			return fmt.Errorf("mutate(%q) put: %w", eventID, err)
		}
		return nil
	})
}

// SetRecovered marks an event recovered at the given time.
func (d *DB) SetRecovered(eventID string, recoveredAt time.Time) error {
	return d.mutate(eventID, func(r *EventRecord) {
		t := recoveredAt.UTC()
		r.RecoveredAt = &t
	})
}

// SetClipPath records the encoded clip's filesystem path and marks the
// upload status pending (spec.md §4.4: a recorded clip always needs a
// cloud-sync pass, dry-run configurations aside).
func (d *DB) SetClipPath(eventID, clipPath string) error {
	return d.mutate(eventID, func(r *EventRecord) {
		r.ClipPath = clipPath
		r.UploadStatus = UploadPending
	})
}

// SetNotificationCount persists the escalation machine's re-notification
// counter (spec.md §4.3/§4.5) so a re-notify survives a restart.
func (d *DB) SetNotificationCount(eventID string, count int) error {
	return d.mutate(eventID, func(r *EventRecord) {
		r.NotificationCount = count
	})
}

// SetUploadStatus updates an event's skeleton cloud-sync status
// (set_upload_status(event_id, cloud_path?, status, error?), spec.md
// §4.6). On success, cloudPath records where the artifact landed and
// errMsg should be empty; on failure, cloudPath is typically empty and
// errMsg carries the reason, persisted on the row per spec.md §7.
// Passing UploadFailed increments UploadAttempts; other statuses leave
// it untouched.
func (d *DB) SetUploadStatus(eventID string, cloudPath string, status UploadStatus, errMsg string) error {
	return d.mutate(eventID, func(r *EventRecord) {
		r.UploadStatus = status
		r.SkeletonCloudPath = cloudPath
		r.SkeletonUploadError = errMsg
		if status == UploadFailed {
			r.UploadAttempts++
		}
	})
}

// scanByConfirmedAt iterates the secondary index in chronological order,
// resolving each event_id to its full record, and collects those for
// which keep returns true.
func (d *DB) scanByConfirmedAt(keep func(EventRecord) bool) ([]EventRecord, error) {
	var out []EventRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket([]byte(bucketByConfirmedAt))
		events := tx.Bucket([]byte(bucketEvents))
		return idx.ForEach(func(_, v []byte) error {
			data := events.Get(v)
			if data == nil {
				return nil // index/event drift; skip rather than fail the scan
			}
			var rec EventRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if keep(rec) {
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

// QueryPending returns events whose skeleton artifact is awaiting upload,
// oldest first.
func (d *DB) QueryPending() ([]EventRecord, error) {
	return d.scanByConfirmedAt(func(r EventRecord) bool { return r.UploadStatus == UploadPending })
}

// QueryFailed returns events whose last upload attempt failed, oldest first.
func (d *DB) QueryFailed() ([]EventRecord, error) {
	return d.scanByConfirmedAt(func(r EventRecord) bool { return r.UploadStatus == UploadFailed })
}

// QueryExpiredClips returns events with a recorded clip whose CreatedAt
// is older than cutoff — the retention sweep's candidate set
// (find_expired_clips, spec.md §4.6/§8 "Retention safety"). Keyed on
// CreatedAt rather than ConfirmedAt so a re-notification, which never
// changes ConfirmedAt, cannot accidentally resurrect an already-expired
// row, and so the window is anchored to when the row was first written
// rather than to its most recent activity.
func (d *DB) QueryExpiredClips(cutoff time.Time) ([]EventRecord, error) {
	return d.scanByConfirmedAt(func(r EventRecord) bool {
		return r.ClipPath != "" && r.CreatedAt.Before(cutoff)
	})
}

// CountByStatus returns the number of events at each upload status, for
// the cloud-sync CLI's --status flag.
func (d *DB) CountByStatus() (map[UploadStatus]int, error) {
	counts := make(map[UploadStatus]int)
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketEvents)).ForEach(func(_, v []byte) error {
			var rec EventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			counts[rec.UploadStatus]++
			return nil
		})
	})
	return counts, err
}

// ClearClipPath removes the clip path reference after the retention
// sweep has deleted the underlying file, so a later scan does not try
// to delete it again.
func (d *DB) ClearClipPath(eventID string) error {
	return d.mutate(eventID, func(r *EventRecord) {
		r.ClipPath = ""
	})
}
