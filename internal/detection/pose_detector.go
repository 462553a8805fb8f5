package detection

import (
	"context"

	"go.uber.org/zap"
)

// PoseDetector adapts an InferenceEngine whose RawResults carry COCO-17
// keypoints into a Detector producing KindSkeleton Detections. RawResults
// whose Keypoints length does not match NumKeypoints are discarded as
// malformed rather than causing a panic.
type PoseDetector struct {
	engine          InferenceEngine
	classFilter     map[string]bool
	confidenceFloor float64
	log             *zap.Logger
}

// PoseDetectorOption configures a PoseDetector at construction.
type PoseDetectorOption func(*PoseDetector)

// WithPoseClassFilter restricts accepted detections to the given class labels.
func WithPoseClassFilter(classes ...string) PoseDetectorOption {
	return func(d *PoseDetector) {
		if len(classes) == 0 {
			return
		}
		d.classFilter = make(map[string]bool, len(classes))
		for _, c := range classes {
			d.classFilter[c] = true
		}
	}
}

// WithPoseConfidenceFloor discards RawResults below the given confidence.
func WithPoseConfidenceFloor(floor float64) PoseDetectorOption {
	return func(d *PoseDetector) { d.confidenceFloor = floor }
}

// NewPoseDetector constructs a PoseDetector over the given engine.
func NewPoseDetector(engine InferenceEngine, log *zap.Logger, opts ...PoseDetectorOption) *PoseDetector {
	d := &PoseDetector{engine: engine, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *PoseDetector) Kind() Kind { return KindSkeleton }

func (d *PoseDetector) Detect(ctx context.Context, image []byte, width, height int) []Detection {
	results, err := d.engine.Infer(ctx, image, width, height)
	if err != nil {
		d.log.Warn("pose inference failed, treating frame as empty", zap.Error(err))
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
		if len(r.Keypoints) != NumKeypoints {
			d.log.Warn("pose result has unexpected keypoint count, discarding",
				zap.Int("got", len(r.Keypoints)), zap.Int("want", NumKeypoints))
			continue
		}
		var s Skeleton
		copy(s.Keypoints[:], r.Keypoints)
		out = append(out, Detection{Kind: KindSkeleton, Skeleton: s})
	}
	return out
}
