// Package skeleton — collector.go
//
// Collector accumulates per-frame skeletons for the currently suspected
// subject and hands the accumulated sequence to the Extractor once a
// confirmed event recovers. The Machine emits no event when SUSPECTED
// clears back to NORMAL, so a false-alarm cycle is never submitted: its
// samples are kept until the next OnSuspected discards them. It
// implements escalation.SuspectedObserver,
// escalation.FallObserver, and escalation.RecoveredObserver, following
// the same capability-interface attachment the Machine itself uses for
// fan-out (internal/escalation/machine.go's attach()).
package skeleton

import (
	"sync"

	"github.com/kionce57/falldetect/internal/detection"
	"github.com/kionce57/falldetect/internal/escalation"
)

// Collector tracks one subject's accumulating pose history across a
// single escalation cycle (SUSPECTED through NORMAL again).
type Collector struct {
	mu sync.Mutex
	// suspectedID identifies the in-progress cycle from the moment it
	// starts accumulating samples. confirmedID is only set if the cycle
	// goes on to confirm, and is what the finished sequence is keyed by —
	// the uploaded skeleton artifact must be addressable by the same
	// evt_ id the event store and uploader use (spec.md §4.6/§4.9), not
	// by the sus_ id a fall rule may never confirm.
	suspectedID string
	confirmedID string
	samples     []TimestampedSkeleton
	cameraID    string
	fps         float64
	extractor   *Extractor
}

// NewCollector constructs a Collector that submits finished sequences to
// the given Extractor.
func NewCollector(extractor *Extractor, cameraID string, fps float64) *Collector {
	return &Collector{extractor: extractor, cameraID: cameraID, fps: fps}
}

// OnSuspected implements escalation.SuspectedObserver: starts a fresh
// accumulation for the new event.
func (c *Collector) OnSuspected(e escalation.SuspectedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspectedID = e.SuspectedID
	c.confirmedID = ""
	c.samples = c.samples[:0]
	return nil
}

// OnFall implements escalation.FallObserver: on first confirmation,
// records the event_id the finished sequence must be keyed by. Ignored
// on re-notification, since confirmedID is already set from the first
// confirmation and must not be disturbed.
func (c *Collector) OnFall(e escalation.FallEvent) error {
	if e.Renotification {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmedID = e.EventID
	return nil
}

// AddSample records one frame's skeleton for the currently active event,
// if any. Call this from the capture loop for every frame that produced
// a KindSkeleton detection — frames recorded before the first
// OnSuspected or after OnRecovered are discarded, since they would never
// be attributable to a sequence.
func (c *Collector) AddSample(timestamp float64, s detection.Skeleton) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suspectedID == "" {
		return
	}
	c.samples = append(c.samples, TimestampedSkeleton{Timestamp: timestamp, Skeleton: s})
}

// OnRecovered implements escalation.RecoveredObserver: finalizes the
// accumulated sequence and submits it for validation and persistence.
// A nil extractor (e.g. in tests that don't care about persistence) is
// a safe no-op. The sequence is keyed by the confirmed event_id when the
// cycle reached CONFIRMED, and by the suspected_id otherwise. The Machine
// emits a RecoveredEvent only for a confirmed cycle, so the suspected_id
// key is used only when OnRecovered is called directly.
func (c *Collector) OnRecovered(e escalation.RecoveredEvent) error {
	c.mu.Lock()
	id := c.confirmedID
	if id == "" {
		id = c.suspectedID
	}
	samples := c.samples
	c.suspectedID = ""
	c.confirmedID = ""
	c.samples = nil
	c.mu.Unlock()

	if id == "" || len(samples) == 0 || c.extractor == nil {
		return nil
	}

	seq := FromSkeletons(id, c.cameraID, c.fps, len(samples), samples)
	return c.extractor.Submit(seq)
}

// Active reports whether a subject is currently being tracked, and its
// suspected_id if so.
func (c *Collector) Active() (eventID string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspectedID, c.suspectedID != ""
}
