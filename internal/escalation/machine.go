// Package escalation — machine.go
//
// Machine drives the delay-confirm state machine for one tracked subject.
// It is the direct descendant of the teacher's ProcessState: one mutex
// guarding one subject's mutable state, atomic transitions, no global
// state, a Current()-style accessor preserved. What changed
// is the transition policy — OCTOREFLEX escalates through six severity
// tiers on a weighted-score formula; falldetect has exactly the three
// states spec.md §4.3 names, driven by a single boolean "is the rule
// firing this tick" rather than a severity score.
package escalation

import (
	"strconv"
	"sync"
	"time"
)

// Config holds the delay-confirm machine's tunables (spec.md §6).
type Config struct {
	// DelaySec: seconds the rule must keep firing after SUSPECTED before
	// the machine confirms a fall. Default 3.0.
	DelaySec float64

	// SameEventWindow: seconds, counted from the event's confirmation time,
	// during which a recurrence of the rule after recovery is treated as
	// the same event and produces no new SuspectedEvent/FallEvent (see
	// DESIGN.md Open Question (a)). Default 60.0.
	SameEventWindow float64

	// ReNotifyInterval: seconds between re-notifications while a subject
	// remains CONFIRMED. Default 120.0.
	ReNotifyInterval float64
}

// epochID formats an event identifier as prefix + floor(epoch seconds),
// matching spec.md line 217: event_id = "evt_" + floor(confirmed_at),
// suspected_id = "sus_" + floor(suspected_at). time.Time.Unix() already
// truncates toward the preceding whole second for any wall-clock-valid
// (post-epoch) timestamp, which is floor for the inputs this machine
// ever sees. Grounded on the original's f"evt_{int(current_time)}"
// (original_source/src/analysis/delay_confirm.py:65).
func epochID(prefix string, t time.Time) string {
	return prefix + strconv.FormatInt(t.Unix(), 10)
}

// Machine tracks one subject's fall-escalation state across successive
// Update calls, protected by a single mutex (teacher's per-PID
// ProcessState pattern, here per-subject since falldetect watches one
// camera's one subject at a time — see SPEC_FULL.md §3).
type Machine struct {
	mu sync.Mutex

	cfg Config

	current State

	suspectedID       string
	eventID           string
	suspectedAt       time.Time
	confirmedAt       time.Time
	lastNotifyAt      time.Time
	notificationCount int
	dedupUntil        time.Time // zero means no active dedup window

	suspectedObservers []SuspectedObserver
	fallObservers      []FallObserver
	recoveredObservers []RecoveredObserver
}

// New constructs a Machine in StateNormal.
func New(cfg Config, observers ...interface{}) *Machine {
	m := &Machine{cfg: cfg, current: StateNormal}
	for _, o := range observers {
		m.attach(o)
	}
	return m
}

// attach registers an observer for every capability interface it
// implements (an observer may implement more than one).
func (m *Machine) attach(o interface{}) {
	if s, ok := o.(SuspectedObserver); ok {
		m.suspectedObservers = append(m.suspectedObservers, s)
	}
	if f, ok := o.(FallObserver); ok {
		m.fallObservers = append(m.fallObservers, f)
	}
	if r, ok := o.(RecoveredObserver); ok {
		m.recoveredObservers = append(m.recoveredObservers, r)
	}
}

// AddObserver attaches another observer after construction.
func (m *Machine) AddObserver(o interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attach(o)
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update advances the machine by one observation: observed is whether the
// fall rule fired this tick, now is the conductor's chosen timestamp for
// this tick (spec.md §9 Design Note / DESIGN.md Open Question (c): the
// conductor is the single source of "now", threaded consistently through
// the ring buffer, the rule evaluator, and this machine).
//
// Observer errors are logged by the caller via the returned error slice;
// a failing observer never stops the remaining observers from being
// notified (per-observer error isolation), and never rolls back the
// state transition that already happened.
func (m *Machine) Update(observed bool, confidence float64, now time.Time) []error {
	m.mu.Lock()

	var (
		suspectedToFire *SuspectedEvent
		fallToFire      *FallEvent
		recoveredToFire *RecoveredEvent
	)

	switch m.current {
	case StateNormal:
		if observed {
			if !m.dedupUntil.IsZero() && now.Before(m.dedupUntil) {
				// Open Question (a): recurrence inside the same-event
				// window is treated as a continuation, not a new event —
				// no-op rather than starting a fresh SUSPECTED cycle.
				break
			}
			m.suspectedID = epochID("sus_", now)
			m.suspectedAt = now
			m.current = StateSuspected
			suspectedToFire = &SuspectedEvent{
				SuspectedID: m.suspectedID,
				DetectedAt:  now,
				Confidence:  confidence,
			}
		}

	case StateSuspected:
		if !observed {
			m.current = StateNormal
			break
		}
		if now.Sub(m.suspectedAt) >= secondsToDuration(m.cfg.DelaySec) {
			m.eventID = epochID("evt_", now)
			m.confirmedAt = now
			m.lastNotifyAt = now
			m.notificationCount = 1
			m.current = StateConfirmed
			fallToFire = &FallEvent{
				EventID:           m.eventID,
				DetectedAt:        m.suspectedAt,
				ConfirmedAt:       now,
				Confidence:        confidence,
				NotificationCount: m.notificationCount,
			}
		}

	case StateConfirmed:
		if !observed {
			m.current = StateNormal
			// Anchored to confirmedAt, not recovery time: a confirmation
			// that stays active longer than same_event_window before
			// recovering must not suppress a genuinely new event that
			// starts shortly after recovery (spec.md §4.5/§8).
			m.dedupUntil = m.confirmedAt.Add(secondsToDuration(m.cfg.SameEventWindow))
			recoveredToFire = &RecoveredEvent{
				EventID:     m.eventID,
				ConfirmedAt: m.confirmedAt,
				RecoveredAt: now,
			}
			break
		}
		if now.Sub(m.lastNotifyAt) >= secondsToDuration(m.cfg.ReNotifyInterval) {
			m.lastNotifyAt = now
			m.notificationCount++
			fallToFire = &FallEvent{
				EventID:           m.eventID,
				DetectedAt:        m.suspectedAt,
				ConfirmedAt:       m.confirmedAt,
				Confidence:        confidence,
				Renotification:    true,
				NotificationCount: m.notificationCount,
			}
		}
	}

	suspectedObservers := append([]SuspectedObserver(nil), m.suspectedObservers...)
	fallObservers := append([]FallObserver(nil), m.fallObservers...)
	recoveredObservers := append([]RecoveredObserver(nil), m.recoveredObservers...)

	m.mu.Unlock()

	var errs []error
	if suspectedToFire != nil {
		for _, o := range suspectedObservers {
			if err := o.OnSuspected(*suspectedToFire); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if fallToFire != nil {
		for _, o := range fallObservers {
			if err := o.OnFall(*fallToFire); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if recoveredToFire != nil {
		for _, o := range recoveredObservers {
			if err := o.OnRecovered(*recoveredToFire); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
