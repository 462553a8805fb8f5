// Package recorder — recorder.go
//
// Clip recorder: on each confirmed fall (first confirmation only, never
// a re-notification), schedules a one-shot delayed extraction from the
// frame ring buffer, then hands the extracted frames to an Encoder to
// produce an MP4 clip (spec.md §4.4/§4.7).
//
// Scheduling model: this is the teacher's token bucket refill-goroutine
// shape (internal/budget/token_bucket.go) generalized from "one ticker
// shared by the whole bucket" to "one cancellable one-shot timer per
// event, held in a map" — because here each event needs its own delay
// anchored to its own ConfirmedAt, not a shared recurring cadence. The
// map + mutex + stop-channel-on-Close discipline is otherwise identical.
//
// Why delayed: the clip window is
// [ConfirmedAt-ClipBeforeSec, ConfirmedAt+ClipAfterSec] (spec.md §6); the
// "after" frames don't exist yet at the moment the fall confirms, so
// extraction must wait ClipAfterSec before reading the buffer.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/escalation"
	"github.com/kionce57/falldetect/internal/ringbuffer"
)

// Encoder turns an ordered frame slice into an on-disk clip file.
type Encoder interface {
	Encode(frames []ringbuffer.Frame, outPath string) error
}

// OnClipRecorded is called after a clip is successfully encoded, so the
// caller (the pipeline conductor, C11) can persist ClipPath into the
// event store (C6). A non-nil error is logged but does not affect the
// recorder's own bookkeeping.
type OnClipRecorded func(eventID, clipPath string) error

// Recorder schedules and performs delayed clip extraction for confirmed
// fall events.
type Recorder struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	buf       *ringbuffer.Buffer
	encoder   Encoder
	outDir    string
	beforeSec float64
	afterSec  float64
	onClip    OnClipRecorded
	log       *zap.Logger

	onSkipped func(eventID, reason string) // test/metrics hook, nil-safe
}

// New constructs a Recorder. outDir must already exist; Recorder never
// creates directories.
func New(buf *ringbuffer.Buffer, encoder Encoder, outDir string, beforeSec, afterSec float64, onClip OnClipRecorded, log *zap.Logger) *Recorder {
	return &Recorder{
		timers:    make(map[string]*time.Timer),
		buf:       buf,
		encoder:   encoder,
		outDir:    outDir,
		beforeSec: beforeSec,
		afterSec:  afterSec,
		onClip:    onClip,
		log:       log,
	}
}

// SetSkippedHook installs a callback invoked whenever a clip extraction
// is skipped, with the reason ("empty_snapshot" or "encode_failed").
// Intended for wiring Prometheus counters; nil-safe if never called.
func (r *Recorder) SetSkippedHook(fn func(eventID, reason string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSkipped = fn
}

// OnFall implements escalation.FallObserver: on first confirmation it
// schedules a one-shot timer that performs the delayed clip extraction.
// Re-notifications (e.Renotification true) are ignored — a confirmed
// fall is recorded exactly once. Idempotent per EventID — a duplicate
// first-confirmation for an already-scheduled event is a no-op.
func (r *Recorder) OnFall(e escalation.FallEvent) error {
	if e.Renotification {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder: closed, dropping schedule for %s", e.EventID)
	}
	if _, exists := r.timers[e.EventID]; exists {
		return nil
	}

	delay := time.Duration(r.afterSec * float64(time.Second))
	r.timers[e.EventID] = time.AfterFunc(delay, func() { r.extract(e) })
	return nil
}

func (r *Recorder) extract(e escalation.FallEvent) {
	r.mu.Lock()
	delete(r.timers, e.EventID)
	r.mu.Unlock()

	eventTime := ringbuffer.UnixSeconds(e.ConfirmedAt)
	frames := r.buf.GetClip(eventTime, r.beforeSec, r.afterSec)
	if len(frames) == 0 {
		r.log.Warn("clip extraction skipped: empty snapshot", zap.String("event_id", e.EventID))
		r.notifySkipped(e.EventID, "empty_snapshot")
		return
	}

	outPath := clipFilePath(r.outDir, e.ConfirmedAt, e.EventID)
	if err := r.encoder.Encode(frames, outPath); err != nil {
		r.log.Error("clip encode failed", zap.String("event_id", e.EventID), zap.Error(err))
		r.notifySkipped(e.EventID, "encode_failed")
		return
	}

	r.log.Info("clip recorded", zap.String("event_id", e.EventID), zap.String("path", outPath))
	if r.onClip != nil {
		if err := r.onClip(e.EventID, outPath); err != nil {
			r.log.Error("clip-recorded callback failed", zap.String("event_id", e.EventID), zap.Error(err))
		}
	}
}

func (r *Recorder) notifySkipped(eventID, reason string) {
	r.mu.Lock()
	fn := r.onSkipped
	r.mu.Unlock()
	if fn != nil {
		fn(eventID, reason)
	}
}

// Close cancels all pending timers and refuses further scheduling. Safe
// to call once.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// Pending returns the number of events currently awaiting extraction —
// exposed for tests; no metric reads it.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
