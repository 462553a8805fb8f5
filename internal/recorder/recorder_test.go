package recorder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/escalation"
	"github.com/kionce57/falldetect/internal/ringbuffer"
)

type fakeEncoder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEncoder) Encode(frames []ringbuffer.Frame, outPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, outPath)
	return f.err
}

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRecorder_ExtractsAndEncodesAfterDelay(t *testing.T) {
	buf := ringbuffer.New(100)
	now := time.Now()
	eventTime := ringbuffer.UnixSeconds(now)
	for i := -5; i <= 5; i++ {
		buf.Push(ringbuffer.Frame{Timestamp: eventTime + float64(i), Image: []byte{1}})
	}

	enc := &fakeEncoder{}
	var recordedPath string
	var mu sync.Mutex
	r := New(buf, enc, "/clips", 2, 0.05, func(eventID, path string) error {
		mu.Lock()
		recordedPath = path
		mu.Unlock()
		return nil
	}, zap.NewNop())
	defer r.Close()

	err := r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: now})
	if err != nil {
		t.Fatalf("OnFall() error: %v", err)
	}
	if r.Pending() != 1 {
		t.Fatalf("expected 1 pending extraction, got %d", r.Pending())
	}

	waitFor(t, time.Second, func() bool { return enc.callCount() == 1 })

	mu.Lock()
	defer mu.Unlock()
	if recordedPath == "" {
		t.Fatal("expected onClip callback to fire with a path")
	}
	if r.Pending() != 0 {
		t.Errorf("expected 0 pending after extraction, got %d", r.Pending())
	}
}

func TestRecorder_DuplicateConfirmIsNoop(t *testing.T) {
	buf := ringbuffer.New(10)
	r := New(buf, &fakeEncoder{}, "/clips", 1, 1, nil, zap.NewNop())
	defer r.Close()

	now := time.Now()
	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: now})
	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: now})
	if r.Pending() != 1 {
		t.Errorf("expected duplicate schedule to be a no-op, got %d pending", r.Pending())
	}
}

func TestRecorder_RenotificationDoesNotScheduleAgain(t *testing.T) {
	buf := ringbuffer.New(10)
	r := New(buf, &fakeEncoder{}, "/clips", 1, 1, nil, zap.NewNop())
	defer r.Close()

	now := time.Now()
	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: now})
	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: now, Renotification: true})
	if r.Pending() != 1 {
		t.Errorf("expected re-notification to be ignored, got %d pending", r.Pending())
	}
}

func TestRecorder_EmptySnapshotSkipsEncode(t *testing.T) {
	buf := ringbuffer.New(10) // no frames pushed
	enc := &fakeEncoder{}
	var skipped string
	r := New(buf, enc, "/clips", 1, 0.01, nil, zap.NewNop())
	r.SetSkippedHook(func(eventID, reason string) { skipped = reason })
	defer r.Close()

	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: time.Now()})
	waitFor(t, time.Second, func() bool { return skipped != "" })

	if skipped != "empty_snapshot" {
		t.Errorf("expected empty_snapshot skip reason, got %q", skipped)
	}
	if enc.callCount() != 0 {
		t.Errorf("expected encoder not called for empty snapshot")
	}
}

func TestRecorder_EncodeFailureSkipsCallback(t *testing.T) {
	buf := ringbuffer.New(10)
	now := time.Now()
	buf.Push(ringbuffer.Frame{Timestamp: ringbuffer.UnixSeconds(now), Image: []byte{1}})

	enc := &fakeEncoder{err: errors.New("disk full")}
	called := false
	r := New(buf, enc, "/clips", 1, 0.01, func(eventID, path string) error {
		called = true
		return nil
	}, zap.NewNop())
	var skipped string
	r.SetSkippedHook(func(eventID, reason string) { skipped = reason })
	defer r.Close()

	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: now})
	waitFor(t, time.Second, func() bool { return skipped != "" })

	if skipped != "encode_failed" {
		t.Errorf("expected encode_failed skip reason, got %q", skipped)
	}
	if called {
		t.Errorf("onClip callback should not fire when encode fails")
	}
}

func TestRecorder_CloseCancelsPendingTimers(t *testing.T) {
	buf := ringbuffer.New(10)
	enc := &fakeEncoder{}
	r := New(buf, enc, "/clips", 1, 10, nil, zap.NewNop()) // long delay

	r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: time.Now()})
	r.Close()

	time.Sleep(20 * time.Millisecond)
	if enc.callCount() != 0 {
		t.Errorf("expected closed recorder to cancel pending extraction")
	}
}

func TestRecorder_ScheduleAfterCloseErrors(t *testing.T) {
	buf := ringbuffer.New(10)
	r := New(buf, &fakeEncoder{}, "/clips", 1, 1, nil, zap.NewNop())
	r.Close()

	if err := r.OnFall(escalation.FallEvent{EventID: "evt-1", ConfirmedAt: time.Now()}); err == nil {
		t.Error("expected error scheduling after Close")
	}
}

func TestClipFilePath_Format(t *testing.T) {
	ts := time.Date(2026, 7, 30, 14, 5, 9, 0, time.UTC)
	got := clipFilePath("/clips", ts, "evt-abc")
	want := "/clips/20260730_140509_evt-abc.mp4"
	if got != want {
		t.Errorf("clipFilePath() = %q, want %q", got, want)
	}
}
