package escalation

import "time"

// SuspectedEvent is emitted the instant the rule starts firing (entry
// into StateSuspected). SuspectedID is derived from its own timestamp
// ("sus_" + floor(suspected_at)) — a distinct identifier namespace from
// FallEvent.EventID, since a suspected event that never confirms has no
// confirmed_at to derive an evt_ id from (spec.md line 217).
type SuspectedEvent struct {
	SuspectedID string
	DetectedAt  time.Time
	Confidence  float64 // rule-specific confidence, 0 if the rule has none
}

// FallEvent is emitted when the rule has kept firing for at least
// DelaySec after the matching SuspectedEvent (entry into StateConfirmed),
// and again on each re-notification while CONFIRMED persists. EventID is
// generated once, at first confirmation ("evt_" + floor(confirmed_at)),
// and reused unchanged across every re-notification and the eventual
// RecoveredEvent.
type FallEvent struct {
	EventID           string
	DetectedAt        time.Time // when the SUSPECTED state was entered
	ConfirmedAt       time.Time
	Confidence        float64
	Renotification    bool // true for re-notify emissions, false for the first
	NotificationCount int  // 1 on first confirmation, incremented on each re-notify
}

// RecoveredEvent is emitted when a CONFIRMED subject's rule clears —
// the store (C6) uses this to set_recovered on the event row.
type RecoveredEvent struct {
	EventID     string
	ConfirmedAt time.Time
	RecoveredAt time.Time
}

// SuspectedObserver is notified of SuspectedEvents. Implementations must
// not block the state machine for long — Machine.Update calls observers
// synchronously and in order.
type SuspectedObserver interface {
	OnSuspected(SuspectedEvent) error
}

// FallObserver is notified of FallEvents (first confirmation and each
// re-notification).
type FallObserver interface {
	OnFall(FallEvent) error
}

// RecoveredObserver is notified when a confirmed subject recovers.
type RecoveredObserver interface {
	OnRecovered(RecoveredEvent) error
}

// SuspectedObserverFunc adapts a function to a SuspectedObserver.
type SuspectedObserverFunc func(SuspectedEvent) error

func (f SuspectedObserverFunc) OnSuspected(e SuspectedEvent) error { return f(e) }

// FallObserverFunc adapts a function to a FallObserver.
type FallObserverFunc func(FallEvent) error

func (f FallObserverFunc) OnFall(e FallEvent) error { return f(e) }

// RecoveredObserverFunc adapts a function to a RecoveredObserver.
type RecoveredObserverFunc func(RecoveredEvent) error

func (f RecoveredObserverFunc) OnRecovered(e RecoveredEvent) error { return f(e) }
