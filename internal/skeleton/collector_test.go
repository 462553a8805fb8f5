package skeleton

import (
	"testing"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/detection"
	"github.com/kionce57/falldetect/internal/escalation"
)

func TestCollector_AccumulatesAndSubmitsOnRecovered(t *testing.T) {
	writer := &fakeWriter{}
	ex := NewExtractor(writer, 4, 1, zap.NewNop())
	defer ex.Close()

	c := NewCollector(ex, "cam-1", 30)

	if err := c.OnSuspected(escalation.SuspectedEvent{SuspectedID: "sus-1"}); err != nil {
		t.Fatalf("OnSuspected() error: %v", err)
	}
	if id, active := c.Active(); !active || id != "sus-1" {
		t.Fatalf("expected active event sus-1, got id=%q active=%v", id, active)
	}

	var s detection.Skeleton
	c.AddSample(0.0, s)
	c.AddSample(0.1, s)
	c.AddSample(0.2, s)

	if err := c.OnRecovered(escalation.RecoveredEvent{EventID: "sus-1"}); err != nil {
		t.Fatalf("OnRecovered() error: %v", err)
	}

	waitForCond(t, func() bool { return writer.count() == 1 })
	if _, active := c.Active(); active {
		t.Error("expected no active event after recovery")
	}
}

func TestCollector_UsesConfirmedEventIDWhenFallConfirms(t *testing.T) {
	writer := &fakeWriter{}
	ex := NewExtractor(writer, 4, 1, zap.NewNop())
	defer ex.Close()

	c := NewCollector(ex, "cam-1", 30)
	c.OnSuspected(escalation.SuspectedEvent{SuspectedID: "sus-1"})
	if err := c.OnFall(escalation.FallEvent{EventID: "evt-1"}); err != nil {
		t.Fatalf("OnFall() error: %v", err)
	}
	// A re-notification must never disturb the confirmed id already captured.
	if err := c.OnFall(escalation.FallEvent{EventID: "evt-should-not-win", Renotification: true}); err != nil {
		t.Fatalf("OnFall() renotify error: %v", err)
	}

	var s detection.Skeleton
	c.AddSample(0.0, s)

	if err := c.OnRecovered(escalation.RecoveredEvent{EventID: "evt-1"}); err != nil {
		t.Fatalf("OnRecovered() error: %v", err)
	}

	waitForCond(t, func() bool { return writer.count() == 1 })
	if got := writer.lastEventID(); got != "evt-1" {
		t.Errorf("expected sequence keyed by confirmed event_id evt-1, got %q", got)
	}
}

func TestCollector_SamplesBeforeSuspectedAreDiscarded(t *testing.T) {
	c := NewCollector(nil, "cam-1", 30)
	var s detection.Skeleton
	c.AddSample(0.0, s) // no active event yet

	c.OnSuspected(escalation.SuspectedEvent{SuspectedID: "sus-1"})
	if len(c.samples) != 0 {
		t.Errorf("expected samples recorded before OnSuspected to be discarded, got %d", len(c.samples))
	}
}

func TestCollector_NilExtractorIsSafeNoop(t *testing.T) {
	c := NewCollector(nil, "cam-1", 30)
	c.OnSuspected(escalation.SuspectedEvent{SuspectedID: "sus-1"})
	var s detection.Skeleton
	c.AddSample(0.0, s)
	if err := c.OnRecovered(escalation.RecoveredEvent{EventID: "sus-1"}); err != nil {
		t.Errorf("expected nil-extractor recovery to be a no-op, got %v", err)
	}
}
