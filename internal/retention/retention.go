// Package retention deletes expired clip files and reconciles the event
// store once they are gone (spec.md §4.6).
//
// Sweep model: a single sweep function does the work; both the periodic
// scheduler and the on-demand --dry-run CLI path call it, so the two
// never drift. This follows the same dedicated-goroutine/stop-channel
// lifecycle as the teacher's token bucket refill loop
// (internal/budget/token_bucket.go): one ticker, one stop channel, no
// external dependency for the scheduling itself.
package retention

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/store"
)

// Config holds the retention sweeper's tunables (spec.md §6's
// lifecycle.clip_retention_days / cleanup_schedule_hours).
type Config struct {
	RetentionDays int
	SweepInterval time.Duration
	DryRun        bool
}

// Result summarizes one sweep.
type Result struct {
	Deleted int
	Freed   int64
	Skipped int
	Errors  []error
}

// Sweeper periodically deletes expired clip files and clears their store
// rows. It is safe to call RunNow concurrently with the scheduled sweep;
// both share the same underlying sweep logic.
type Sweeper struct {
	mu     sync.Mutex
	cfg    Config
	db     *store.DB
	log    *zap.Logger
	stop   chan struct{}
	closed bool

	onResult func(Result)
}

// New constructs a Sweeper. Call Start to begin the periodic schedule;
// RunNow can be called at any time, scheduled or not.
func New(db *store.DB, cfg Config, log *zap.Logger) *Sweeper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}
	return &Sweeper{cfg: cfg, db: db, log: log, stop: make(chan struct{})}
}

// SetResultHook registers a callback invoked after every sweep (scheduled
// or on-demand), for metrics wiring.
func (s *Sweeper) SetResultHook(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// Start runs the periodic sweep loop in a dedicated goroutine until
// Close is called.
func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one sweep immediately, independent of the schedule.
// In dry-run mode it reports what it would delete without touching the
// filesystem or the store.
func (s *Sweeper) RunNow() Result {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	result := s.sweep(cutoff)

	s.mu.Lock()
	hook := s.onResult
	s.mu.Unlock()
	if hook != nil {
		hook(result)
	}
	return result
}

// sweep is the shared logic between the scheduled and on-demand paths.
// One row's failure (a missing file, a store write error) is isolated and
// recorded rather than aborting the rest of the batch.
func (s *Sweeper) sweep(cutoff time.Time) Result {
	var result Result

	expired, err := s.db.QueryExpiredClips(cutoff)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	for _, rec := range expired {
		info, statErr := os.Stat(rec.ClipPath)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				s.log.Warn("retention: clip already absent", zap.String("event_id", rec.EventID), zap.String("path", rec.ClipPath))
				result.Skipped++
				if !s.cfg.DryRun {
					if clearErr := s.db.ClearClipPath(rec.EventID); clearErr != nil {
						s.log.Error("retention: clear clip path failed", zap.String("event_id", rec.EventID), zap.Error(clearErr))
						result.Errors = append(result.Errors, clearErr)
					}
				}
				continue
			}
			s.log.Error("retention: stat failed", zap.String("event_id", rec.EventID), zap.Error(statErr))
			result.Errors = append(result.Errors, statErr)
			continue
		}

		if s.cfg.DryRun {
			s.log.Info("retention: would delete clip", zap.String("event_id", rec.EventID), zap.String("path", rec.ClipPath), zap.Int64("bytes", info.Size()))
			result.Deleted++
			result.Freed += info.Size()
			continue
		}

		if rmErr := os.Remove(rec.ClipPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Error("retention: delete failed", zap.String("event_id", rec.EventID), zap.Error(rmErr))
			result.Errors = append(result.Errors, rmErr)
			continue
		}
		if clearErr := s.db.ClearClipPath(rec.EventID); clearErr != nil {
			s.log.Error("retention: clear clip path failed", zap.String("event_id", rec.EventID), zap.Error(clearErr))
			result.Errors = append(result.Errors, clearErr)
			continue
		}

		s.log.Info("retention: deleted expired clip", zap.String("event_id", rec.EventID), zap.Int64("bytes", info.Size()))
		result.Deleted++
		result.Freed += info.Size()
	}

	return result
}

// Close stops the periodic sweep loop. Safe to call once; RunNow remains
// usable afterward for a final on-demand sweep.
func (s *Sweeper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.stop)
}
