// Package smoothing — onefilter.go
//
// One-Euro adaptive low-pass filter for keypoint smoothing (spec.md §4.1
// edge case: raw per-frame keypoints are jittery enough to produce a
// false-positive torso angle spike; the filter trades a little lag for a
// lot less noise without the fixed-lag cost of a plain moving average).
//
// Formula (1€ Filter, Casiez et al. 2012):
//
//	α     = 1 / (1 + τ/Δt)
//	τ     = 1 / (2π·f_c)
//	f_c   = min_cutoff + β·|ẋ|
//	x̂_t   = α·x_t + (1-α)·x̂_{t-1}
//
// ẋ (the derivative) is itself low-pass filtered with a fixed cutoff
// d_cutoff before it feeds the adaptive cutoff above.
//
// One Filter instance holds one EWMA-style low-pass stage per keypoint
// axis: thread-safety by a single mutex per instance, explicit Reset, no
// global state.
package smoothing

import (
	"fmt"
	"math"
	"sync"

	"github.com/kionce57/falldetect/internal/detection"
)

// axisFilter is one low-pass stage (one scalar signal: an x, a y, or a
// derivative channel).
type axisFilter struct {
	initialized bool
	value       float64
}

func (f *axisFilter) step(x, alpha float64) float64 {
	if !f.initialized {
		f.value = x
		f.initialized = true
		return x
	}
	f.value = alpha*x + (1-alpha)*f.value
	return f.value
}

func (f *axisFilter) reset() {
	f.initialized = false
	f.value = 0
}

// lowPass computes the smoothing factor α for a stage with cutoff fc, at
// sample interval dt.
func lowPassAlpha(fc, dt float64) float64 {
	tau := 1.0 / (2 * math.Pi * fc)
	return 1.0 / (1.0 + tau/dt)
}

// perAxis holds the x/y/derivative filter chain for one keypoint.
type perAxis struct {
	x, y   axisFilter
	dx, dy axisFilter
	lastX  float64
	lastY  float64
	have   bool
}

// Filter smooths the NumKeypoints keypoints of a Skeleton time series
// using an independent One-Euro filter per keypoint. One Filter is meant
// to track one subject across consecutive frames; create a new Filter (or
// call Reset) when tracking restarts.
type Filter struct {
	mu        sync.Mutex
	minCutoff float64
	beta      float64
	dCutoff   float64
	axes      [detection.NumKeypoints]perAxis
}

// New constructs a Filter. minCutoff and dCutoff must be > 0; beta must
// be >= 0. Returns an error rather than panicking so that a bad config
// value surfaces during agent startup instead of at first frame.
func New(minCutoff, beta, dCutoff float64) (*Filter, error) {
	if minCutoff <= 0 {
		return nil, fmt.Errorf("smoothing: min_cutoff must be > 0, got %v", minCutoff)
	}
	if dCutoff <= 0 {
		return nil, fmt.Errorf("smoothing: d_cutoff must be > 0, got %v", dCutoff)
	}
	if beta < 0 {
		return nil, fmt.Errorf("smoothing: beta must be >= 0, got %v", beta)
	}
	return &Filter{minCutoff: minCutoff, beta: beta, dCutoff: dCutoff}, nil
}

// Apply filters one frame's Skeleton given the elapsed time since the
// previous frame (dt, in seconds, must be > 0). Visibility is passed
// through unfiltered — only position is smoothed.
func (f *Filter) Apply(s detection.Skeleton, dt float64) detection.Skeleton {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dt <= 0 {
		dt = 1e-3
	}

	var out detection.Skeleton
	for i := 0; i < detection.NumKeypoints; i++ {
		out.Keypoints[i] = f.applyKeypoint(i, s.Keypoints[i], dt)
	}
	return out
}

func (f *Filter) applyKeypoint(i int, kp detection.Keypoint, dt float64) detection.Keypoint {
	a := &f.axes[i]

	if !a.have {
		a.x.step(kp.X, 1.0)
		a.y.step(kp.Y, 1.0)
		a.lastX, a.lastY = kp.X, kp.Y
		a.have = true
		return kp
	}

	rawDx := (kp.X - a.lastX) / dt
	rawDy := (kp.Y - a.lastY) / dt
	dAlpha := lowPassAlpha(f.dCutoff, dt)
	edx := a.dx.step(rawDx, dAlpha)
	edy := a.dy.step(rawDy, dAlpha)

	fcX := f.minCutoff + f.beta*math.Abs(edx)
	fcY := f.minCutoff + f.beta*math.Abs(edy)

	sx := a.x.step(kp.X, lowPassAlpha(fcX, dt))
	sy := a.y.step(kp.Y, lowPassAlpha(fcY, dt))

	a.lastX, a.lastY = kp.X, kp.Y

	return detection.Keypoint{X: sx, Y: sy, Visibility: kp.Visibility}
}

// Reset clears all per-keypoint filter state, as if tracking had just
// started. Call this when a subject is lost and later reacquired.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.axes {
		f.axes[i] = perAxis{}
	}
}

// ResetKeypoint clears filter state for a single keypoint index, leaving
// the others untouched.
func (f *Filter) ResetKeypoint(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= detection.NumKeypoints {
		return
	}
	f.axes[i] = perAxis{}
}
