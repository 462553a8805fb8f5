// Package ringbuffer — buffer.go
//
// Fixed-capacity time-ordered frame buffer shared between the capture loop
// (single writer) and post-event consumers (many readers): the clip
// recorder (C7) and the skeleton collector (C8).
//
// Concurrency model: a single mutex guards the underlying slice. Push is
// the only mutation and never blocks the producer on anything but the
// lock itself (no I/O, no allocation beyond the occasional slice grow
// within capacity). GetClip takes the same lock to snapshot a range —
// this is what prevents a concurrent Push from tearing the scan: either
// the snapshot is taken entirely before the push, or entirely after.
//
// Frame ownership: the buffer is the sole owner of pushed Frames until
// they are evicted. GetClip returns copies (see Frame.clone) so later
// eviction never invalidates a caller's snapshot.
package ringbuffer

import (
	"sync"
	"time"
)

// BBox is an axis-aligned bounding box, retained on Frame for schema
// parity with the source pipeline. Not consumed by any correctness path —
// see DESIGN.md Open Question (b).
type BBox struct {
	X, Y, W, H float64
}

// Frame is a single timestamped capture. Timestamp is whatever logical
// clock the caller is using consistently for this pipeline run — see
// DESIGN.md Open Question (c): the conductor (C11) is the single place
// that decides what "now" means, and passes the same value to both
// Buffer.Push and escalation.Machine.Update.
type Frame struct {
	Timestamp float64 // seconds, monotonic non-decreasing within the buffer
	Image     []byte  // opaque HxWx3 pixel data; never interpreted here
	Width     int
	Height    int
	BBox      *BBox // optional; the conductor does not set it, so its frames carry nil
}

func (f Frame) clone() Frame {
	var img []byte
	if f.Image != nil {
		img = make([]byte, len(f.Image))
		copy(img, f.Image)
	}
	var bbox *BBox
	if f.BBox != nil {
		b := *f.BBox
		bbox = &b
	}
	return Frame{Timestamp: f.Timestamp, Image: img, Width: f.Width, Height: f.Height, BBox: bbox}
}

// Buffer is a fixed-capacity FIFO of Frame, oldest evicted first.
type Buffer struct {
	mu       sync.Mutex
	frames   []Frame
	capacity int
}

// Capacity computes floor(bufferSeconds * fps), per spec.md §4.1. Always
// at least 1.
func Capacity(bufferSeconds float64, fps int) int {
	c := int(bufferSeconds * float64(fps))
	if c < 1 {
		c = 1
	}
	return c
}

// New creates a Buffer with the given fixed capacity. capacity must be > 0.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest if the buffer is full. Never
// blocks on anything but the internal mutex.
func (b *Buffer) Push(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) >= b.capacity {
		// Evict oldest. Shifting is O(n) but n is bounded by capacity,
		// which is small (seconds * fps) — acceptable for the steady-state
		// push rate of a single camera.
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:len(b.frames)-1]
	}
	b.frames = append(b.frames, f)
}

// GetClip returns all frames with eventTime-beforeSec <= ts <= eventTime+afterSec,
// in timestamp order, as independent copies. An empty buffer or empty
// window returns an empty (non-nil) slice, never an error.
func (b *Buffer) GetClip(eventTime, beforeSec, afterSec float64) []Frame {
	lo := eventTime - beforeSec
	hi := eventTime + afterSec

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Frame, 0, len(b.frames))
	for _, f := range b.frames {
		if f.Timestamp >= lo && f.Timestamp <= hi {
			out = append(out, f.clone())
		}
	}
	return out
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
}

// Len returns the current number of frames held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// UnixSeconds converts a time.Time to the float64 Unix-seconds clock used
// uniformly as Frame.Timestamp across the pipeline (DESIGN.md Open
// Question (c)): the conductor calls this once per captured frame and
// passes the same value to Buffer.Push; any later component that needs to
// look a captured moment up in the buffer (the clip recorder, C7) applies
// the same conversion to its event timestamp so the two clocks never
// drift apart.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
