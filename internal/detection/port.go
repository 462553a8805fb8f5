// Package detection — port.go
//
// The Detector port: the seam between the capture loop and whatever
// inference engine actually produces bounding boxes or skeletons. Detector
// implementations are thin adapters over an InferenceEngine; the engine
// itself is external (a model server, a local runtime binding, a test
// double) and is never implemented in this package.
package detection

import "context"

// RawResult is what an InferenceEngine returns for one frame: a set of
// class-labeled boxes with per-box confidence, and — for pose engines —
// per-box keypoints. BBox-only engines leave Keypoints nil.
type RawResult struct {
	Class      string
	Confidence float64
	X, Y, W, H float64
	Keypoints  []Keypoint // len 0 or NumKeypoints
}

// InferenceEngine is the external model boundary: given raw image bytes,
// return zero or more RawResults. Implementations must not panic — a
// failing engine call becomes an error, which Detector implementations
// turn into an empty result plus a logged warning (spec.md §9 Design
// Note: detector errors never abort the frame pipeline).
type InferenceEngine interface {
	Infer(ctx context.Context, image []byte, width, height int) ([]RawResult, error)
}

// Detector produces zero or more Detections for a single frame. A
// Detector never returns an error to its caller: engine failures are
// swallowed into an empty slice by the concrete implementation, which
// logs the underlying cause. This mirrors spec.md §9's instruction that
// a transient vision failure degrades gracefully to "no detection this
// frame" rather than halting the capture loop.
type Detector interface {
	// Detect runs inference on one frame and returns its Detections.
	Detect(ctx context.Context, image []byte, width, height int) []Detection

	// Kind reports which Detection variant this detector produces.
	Kind() Kind
}
