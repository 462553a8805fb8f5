package rule

import (
	"math"
	"testing"

	"github.com/kionce57/falldetect/internal/detection"
)

func TestEvaluateBBox(t *testing.T) {
	th := DefaultBBoxThresholds()
	cases := []struct {
		name string
		b    detection.BBox
		want bool
	}{
		{"standing tall box", detection.BBox{W: 50, H: 150}, false},
		{"fallen wide box", detection.BBox{W: 150, H: 50}, true},
		{"just above threshold", detection.BBox{W: 100, H: 131}, false},
		{"just below threshold", detection.BBox{W: 100, H: 129}, true},
		{"zero width never fallen", detection.BBox{W: 0, H: 100}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := EvaluateBBox(c.b, th); got != c.want {
				t.Errorf("EvaluateBBox(%+v) = %v, want %v", c.b, got, c.want)
			}
		})
	}
}

func poseWithAngleAndVisibility(angleDeg, visibility float64) detection.Skeleton {
	var s detection.Skeleton
	// Shoulders fixed at origin; hips placed to realize the requested
	// torso angle via dy = cos(angle), dx = sin(angle) on a unit segment.
	rad := angleDeg * math.Pi / 180.0
	dx := math.Sin(rad)
	dy := math.Cos(rad)
	s.Keypoints[detection.KPLeftShoulder] = detection.Keypoint{X: 0, Y: 0, Visibility: visibility}
	s.Keypoints[detection.KPRightShoulder] = detection.Keypoint{X: 0, Y: 0, Visibility: visibility}
	s.Keypoints[detection.KPLeftHip] = detection.Keypoint{X: dx, Y: dy, Visibility: visibility}
	s.Keypoints[detection.KPRightHip] = detection.Keypoint{X: dx, Y: dy, Visibility: visibility}
	return s
}

func TestEvaluatePose_AngleThreshold(t *testing.T) {
	th := DefaultPoseThresholds()

	standing := poseWithAngleAndVisibility(10, 1.0)
	if EvaluatePose(standing, th) {
		t.Error("standing pose should not be fallen")
	}

	fallen := poseWithAngleAndVisibility(80, 1.0)
	if !EvaluatePose(fallen, th) {
		t.Error("fallen pose should be classified as fallen")
	}
}

func TestEvaluatePose_LowVisibilityNeverEscalates(t *testing.T) {
	th := DefaultPoseThresholds()
	fallenButUnsure := poseWithAngleAndVisibility(90, 0.1)
	if EvaluatePose(fallenButUnsure, th) {
		t.Error("low-visibility pose must never escalate regardless of angle")
	}
}

func TestPoseConfidence_RampsAndClamps(t *testing.T) {
	th := DefaultPoseThresholds()

	below := poseWithAngleAndVisibility(10, 1.0)
	if got := PoseConfidence(below, th); got != 0 {
		t.Errorf("below-threshold confidence = %v, want 0", got)
	}

	atRamp := poseWithAngleAndVisibility(th.TorsoAngleThreshold+30, 1.0)
	if got := PoseConfidence(atRamp, th); got != 1 {
		t.Errorf("full-ramp confidence = %v, want 1", got)
	}

	// TorsoAngle never exceeds 90°, so a lower threshold is what puts a
	// horizontal torso past the end of the ramp.
	pastTh := th
	pastTh.TorsoAngleThreshold = 30
	wayPast := poseWithAngleAndVisibility(90, 1.0)
	if got := PoseConfidence(wayPast, pastTh); got != 1 {
		t.Errorf("past-ramp confidence = %v, want clamped to 1", got)
	}

	lowVis := poseWithAngleAndVisibility(th.TorsoAngleThreshold+30, 0.0)
	if got := PoseConfidence(lowVis, th); got != 0 {
		t.Errorf("low-visibility confidence = %v, want 0", got)
	}
}

func TestEvaluate_DispatchesOnKind(t *testing.T) {
	bboxTh := DefaultBBoxThresholds()
	poseTh := DefaultPoseThresholds()

	d := detection.Detection{Kind: detection.KindBBox, BBox: detection.BBox{W: 150, H: 50}}
	if !Evaluate(d, bboxTh, poseTh) {
		t.Error("expected bbox detection to dispatch to EvaluateBBox and report fallen")
	}

	d2 := detection.Detection{Kind: detection.Kind(99)}
	if Evaluate(d2, bboxTh, poseTh) {
		t.Error("unknown kind should never report fallen")
	}
}
