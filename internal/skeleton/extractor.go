// Package skeleton — extractor.go
//
// Bounded worker pool that validates and persists SkeletonSequence
// documents. Architecture mirrors the teacher's kernel ring-buffer
// processor (internal/kernel/events.go): a buffered job channel absorbs
// bursts, a fixed pool of workers drains it, and a full queue drops the
// newest job rather than blocking the submitter — here that submitter is
// the Collector reacting to a just-recovered fall event, not a capture
// loop, but the backpressure policy is the same "drop and count, never
// block" contract.
package skeleton

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer persists a validated SkeletonSequence and returns where it was
// written.
type Writer interface {
	Write(seq SkeletonSequence) (path string, err error)
}

type extractionJob struct {
	jobID string
	seq   SkeletonSequence
}

// Extractor runs a fixed pool of workers over a bounded job queue.
type Extractor struct {
	queue  chan extractionJob
	writer Writer
	log    *zap.Logger
	wg     sync.WaitGroup

	mu        sync.Mutex
	onOutcome func(outcome string) // "confirmed" | "cleared", for metrics
	onDropped func()
	onWritten func(eventID, path string)
}

// NewExtractor starts workerCount worker goroutines draining a queue of
// capacity queueCap. Call Close to stop them.
func NewExtractor(writer Writer, queueCap, workerCount int, log *zap.Logger) *Extractor {
	if queueCap < 1 {
		queueCap = 1
	}
	if workerCount < 1 {
		workerCount = 1
	}
	e := &Extractor{
		queue:  make(chan extractionJob, queueCap),
		writer: writer,
		log:    log,
	}
	for i := 0; i < workerCount; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// SetOutcomeHook installs a callback fired after each job completes, with
// outcome "confirmed" (the sequence passed validation and was written)
// or "cleared" (validation failed, the sequence was empty, or the write
// failed). Intended for wiring Prometheus counters.
func (e *Extractor) SetOutcomeHook(fn func(outcome string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOutcome = fn
}

// SetDroppedHook installs a callback fired when Submit drops a job
// because the queue is full.
func (e *Extractor) SetDroppedHook(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDropped = fn
}

// SetWrittenHook installs a callback fired after a sequence is
// successfully persisted to disk, with the event_id and the local path
// it was written to. The conductor uses this to mark the artifact
// pending upload in the event store (spec.md §4.6/§4.9).
func (e *Extractor) SetWrittenHook(fn func(eventID, path string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onWritten = fn
}

// Submit enqueues a sequence for validation and persistence. Returns an
// error immediately if the queue is full — the caller (Collector) has
// already lost nothing by this point, since the sequence itself is
// still referenced by the caller if it wants to retry or log it.
func (e *Extractor) Submit(seq SkeletonSequence) error {
	jobID := uuid.NewString()
	select {
	case e.queue <- extractionJob{jobID: jobID, seq: seq}:
		return nil
	default:
		e.log.Warn("extraction queue full, dropping job",
			zap.String("job_id", jobID), zap.String("event_id", seq.EventID))
		e.mu.Lock()
		hook := e.onDropped
		e.mu.Unlock()
		if hook != nil {
			hook()
		}
		return fmt.Errorf("skeleton: extraction queue full, dropped event %s", seq.EventID)
	}
}

// QueueDepth returns the current number of jobs awaiting a worker.
func (e *Extractor) QueueDepth() int {
	return len(e.queue)
}

func (e *Extractor) worker() {
	defer e.wg.Done()
	for job := range e.queue {
		e.process(job)
	}
}

func (e *Extractor) process(job extractionJob) {
	outcome := "confirmed"
	if err := Validate(job.seq); err != nil {
		e.log.Warn("skeleton sequence failed validation, not persisting",
			zap.String("job_id", job.jobID), zap.String("event_id", job.seq.EventID), zap.Error(err))
		outcome = "cleared"
	} else if len(job.seq.Sequence) == 0 {
		outcome = "cleared"
	} else {
		path, err := e.writer.Write(job.seq)
		if err != nil {
			e.log.Error("failed to persist skeleton sequence",
				zap.String("job_id", job.jobID), zap.String("event_id", job.seq.EventID), zap.Error(err))
			outcome = "cleared"
		} else {
			e.log.Info("skeleton sequence persisted",
				zap.String("job_id", job.jobID), zap.String("event_id", job.seq.EventID), zap.String("path", path))
			e.mu.Lock()
			written := e.onWritten
			e.mu.Unlock()
			if written != nil {
				written(job.seq.EventID, path)
			}
		}
	}

	e.mu.Lock()
	hook := e.onOutcome
	e.mu.Unlock()
	if hook != nil {
		hook(outcome)
	}
}

// Close stops accepting new jobs and waits for queued jobs to drain.
func (e *Extractor) Close() {
	close(e.queue)
	e.wg.Wait()
}
