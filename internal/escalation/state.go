// Package escalation — state.go
//
// Defines the delay-confirm state machine for the falldetect agent.
//
// State transition graph (spec.md §4.3):
//
//	NORMAL ──(rule fires)──→ SUSPECTED ──(still firing after delay_sec)──→ CONFIRMED
//	   ↑                         │                                            │
//	   └─────(rule clears)───────┘                                            │
//	   ↑                                                                      │
//	   └──────────────────────(rule clears: recovered)─────────────────────────┘
//
// State semantics:
//   NORMAL    — no fall suspected. The rule is not currently firing.
//   SUSPECTED — the rule just started firing; a SuspectedEvent has been
//               emitted (the skeleton collector starts accumulating on
//               it), but no fall has been confirmed yet. Any rule-false
//               observation reverts this to NORMAL, and no event is
//               emitted for that reversion (see Update).
//   CONFIRMED — the rule kept firing for at least DelaySec after
//               SUSPECTED was entered. A FallEvent has been emitted.
//
// Monotonicity: only Update() drives transitions; there is no separate
// decay scheduler. Re-entering NORMAL from CONFIRMED is "recovered", a
// distinct condition surfaced as a RecoveredEvent to the registered
// RecoveredObservers so the store (C6) can mark the event row accordingly.
package escalation

import "fmt"

// State is the fall-escalation state of the single tracked subject.
type State uint8

const (
	StateNormal State = iota
	StateSuspected
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateSuspected:
		return "SUSPECTED"
	case StateConfirmed:
		return "CONFIRMED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}
