package detection

import (
	"context"

	"go.uber.org/zap"
)

// BBoxDetector adapts an InferenceEngine whose RawResults carry no
// keypoints into a Detector producing KindBBox Detections.
type BBoxDetector struct {
	engine          InferenceEngine
	classFilter     map[string]bool // nil means accept any class
	confidenceFloor float64
	log             *zap.Logger
}

// BBoxDetectorOption configures a BBoxDetector at construction.
type BBoxDetectorOption func(*BBoxDetector)

// WithClassFilter restricts accepted detections to the given class
// labels (e.g. "person"). Passing no classes accepts every class.
func WithClassFilter(classes ...string) BBoxDetectorOption {
	return func(d *BBoxDetector) {
		if len(classes) == 0 {
			return
		}
		d.classFilter = make(map[string]bool, len(classes))
		for _, c := range classes {
			d.classFilter[c] = true
		}
	}
}

// WithConfidenceFloor discards RawResults below the given confidence.
func WithConfidenceFloor(floor float64) BBoxDetectorOption {
	return func(d *BBoxDetector) { d.confidenceFloor = floor }
}

// NewBBoxDetector constructs a BBoxDetector over the given engine.
func NewBBoxDetector(engine InferenceEngine, log *zap.Logger, opts ...BBoxDetectorOption) *BBoxDetector {
	d := &BBoxDetector{engine: engine, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *BBoxDetector) Kind() Kind { return KindBBox }

// Detect runs the engine and converts accepted RawResults to Detections.
// Engine errors are logged and produce an empty result, never propagated.
func (d *BBoxDetector) Detect(ctx context.Context, image []byte, width, height int) []Detection {
	results, err := d.engine.Infer(ctx, image, width, height)
	if err != nil {
		d.log.Warn("bbox inference failed, treating frame as empty", zap.Error(err))
		return nil
	}

	out := make([]Detection, 0, len(results))
	for _, r := range results {
		if d.classFilter != nil && !d.classFilter[r.Class] {
			continue
		}
		if r.Confidence < d.confidenceFloor {
			continue
		}
		out = append(out, Detection{
			Kind: KindBBox,
			BBox: BBox{X: r.X, Y: r.Y, W: r.W, H: r.H},
		})
	}
	return out
}
