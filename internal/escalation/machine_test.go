package escalation

import (
	"errors"
	"testing"
	"time"
)

type recordingObserver struct {
	suspected []SuspectedEvent
	falls     []FallEvent
	recovered []RecoveredEvent
}

func (r *recordingObserver) OnSuspected(e SuspectedEvent) error {
	r.suspected = append(r.suspected, e)
	return nil
}
func (r *recordingObserver) OnFall(e FallEvent) error {
	r.falls = append(r.falls, e)
	return nil
}
func (r *recordingObserver) OnRecovered(e RecoveredEvent) error {
	r.recovered = append(r.recovered, e)
	return nil
}

func TestMachine_StandingFallConfirmRecover(t *testing.T) {
	obs := &recordingObserver{}
	m := New(Config{DelaySec: 3, SameEventWindow: 60, ReNotifyInterval: 120}, obs)

	t0 := time.Unix(1000, 0)

	// Standing: no rule firing.
	m.Update(false, 0, t0)
	if m.Current() != StateNormal {
		t.Fatalf("expected NORMAL, got %v", m.Current())
	}

	// Rule fires: enters SUSPECTED.
	m.Update(true, 0.5, t0.Add(1*time.Second))
	if m.Current() != StateSuspected {
		t.Fatalf("expected SUSPECTED, got %v", m.Current())
	}
	if len(obs.suspected) != 1 {
		t.Fatalf("expected 1 suspected event, got %d", len(obs.suspected))
	}

	// Still within delay: stays SUSPECTED.
	m.Update(true, 0.6, t0.Add(2*time.Second))
	if m.Current() != StateSuspected {
		t.Fatalf("expected still SUSPECTED before delay elapses, got %v", m.Current())
	}
	if len(obs.falls) != 0 {
		t.Fatalf("should not confirm before delay elapses")
	}

	// Delay elapsed: confirms.
	m.Update(true, 0.9, t0.Add(5*time.Second))
	if m.Current() != StateConfirmed {
		t.Fatalf("expected CONFIRMED, got %v", m.Current())
	}
	if len(obs.falls) != 1 || obs.falls[0].Renotification {
		t.Fatalf("expected exactly 1 non-renotification fall event, got %+v", obs.falls)
	}

	// Recovers.
	m.Update(false, 0, t0.Add(10*time.Second))
	if m.Current() != StateNormal {
		t.Fatalf("expected NORMAL after recovery, got %v", m.Current())
	}
	if len(obs.recovered) != 1 {
		t.Fatalf("expected 1 recovered event, got %d", len(obs.recovered))
	}
}

func TestMachine_FalseAlarmRevertsWithoutConfirming(t *testing.T) {
	obs := &recordingObserver{}
	m := New(Config{DelaySec: 3, SameEventWindow: 60, ReNotifyInterval: 120}, obs)
	t0 := time.Unix(2000, 0)

	m.Update(true, 0.5, t0)
	if m.Current() != StateSuspected {
		t.Fatal("expected SUSPECTED")
	}

	m.Update(false, 0, t0.Add(1*time.Second))
	if m.Current() != StateNormal {
		t.Fatalf("expected false alarm to revert to NORMAL, got %v", m.Current())
	}
	if len(obs.falls) != 0 {
		t.Errorf("false alarm must not confirm a fall, got %d fall events", len(obs.falls))
	}
}

func TestMachine_RenotifiesAtInterval(t *testing.T) {
	obs := &recordingObserver{}
	m := New(Config{DelaySec: 3, SameEventWindow: 60, ReNotifyInterval: 10}, obs)
	t0 := time.Unix(3000, 0)

	m.Update(true, 0.5, t0)
	m.Update(true, 0.5, t0.Add(4*time.Second)) // confirms
	if len(obs.falls) != 1 {
		t.Fatalf("expected 1 fall event after confirm, got %d", len(obs.falls))
	}

	m.Update(true, 0.5, t0.Add(8*time.Second)) // within renotify interval
	if len(obs.falls) != 1 {
		t.Fatalf("should not renotify before interval elapses, got %d", len(obs.falls))
	}

	m.Update(true, 0.5, t0.Add(16*time.Second)) // past renotify interval
	if len(obs.falls) != 2 || !obs.falls[1].Renotification {
		t.Fatalf("expected a renotification fall event, got %+v", obs.falls)
	}
}

func TestMachine_SameEventWindowSuppressesNewEvent(t *testing.T) {
	obs := &recordingObserver{}
	m := New(Config{DelaySec: 1, SameEventWindow: 30, ReNotifyInterval: 120}, obs)
	t0 := time.Unix(4000, 0)

	m.Update(true, 0.5, t0)
	m.Update(true, 0.5, t0.Add(2*time.Second)) // confirms
	m.Update(false, 0, t0.Add(3*time.Second))  // recovers, dedup window opens

	if len(obs.falls) != 1 || len(obs.recovered) != 1 {
		t.Fatalf("unexpected pre-recurrence state: falls=%d recovered=%d", len(obs.falls), len(obs.recovered))
	}

	// Recurs within the same-event window: must not emit a new suspected event.
	m.Update(true, 0.5, t0.Add(5*time.Second))
	if m.Current() != StateNormal {
		t.Fatalf("recurrence within dedup window should be a no-op, got state %v", m.Current())
	}
	if len(obs.suspected) != 1 {
		t.Fatalf("expected no new suspected event within dedup window, got %d total", len(obs.suspected))
	}

	// After the window closes, a new rule-firing starts a fresh cycle.
	m.Update(true, 0.5, t0.Add(40*time.Second))
	if m.Current() != StateSuspected {
		t.Fatalf("expected new SUSPECTED cycle after dedup window closes, got %v", m.Current())
	}
	if len(obs.suspected) != 2 {
		t.Fatalf("expected a second suspected event after window closes, got %d", len(obs.suspected))
	}
}

type failingObserver struct{ calls int }

func (f *failingObserver) OnSuspected(e SuspectedEvent) error {
	f.calls++
	return errors.New("boom")
}

func TestMachine_ObserverErrorDoesNotBlockOthers(t *testing.T) {
	failing := &failingObserver{}
	recording := &recordingObserver{}
	m := New(Config{DelaySec: 3, SameEventWindow: 60, ReNotifyInterval: 120}, failing, recording)

	errs := m.Update(true, 0.5, time.Unix(5000, 0))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error surfaced, got %d", len(errs))
	}
	if len(recording.suspected) != 1 {
		t.Fatalf("expected second observer still notified despite first's error, got %d", len(recording.suspected))
	}
}
