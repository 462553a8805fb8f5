// Package rule — rule.go
//
// Fall rule evaluation for the falldetect agent.
//
// Two independent rules, one per detection kind (spec.md §3/§4.2):
//
//	BBox rule:  aspect_ratio = h/w  < fall_threshold           → fallen
//	Pose rule:  torso_angle ≥ torso_angle_threshold            → fallen,
//	            gated on min_visibility of the shoulder/hip keypoints
//
// Both rules are pure functions of their inputs: no state, no I/O, safe
// to call from any goroutine: a pure evaluation over inputs and
// configurable thresholds.
package rule

import "github.com/kionce57/falldetect/internal/detection"

// BBoxThresholds configures the bounding-box fall rule.
type BBoxThresholds struct {
	// FallThreshold: aspect_ratio below this is classified as fallen.
	// Default 1.3 (spec.md §6).
	FallThreshold float64
}

// DefaultBBoxThresholds returns the spec-documented defaults.
func DefaultBBoxThresholds() BBoxThresholds {
	return BBoxThresholds{FallThreshold: 1.3}
}

// EvaluateBBox classifies a BBox detection as fallen or not.
// Returns false (not fallen) for a degenerate zero-width box, since
// BBox.AspectRatio() already returns 0 in that case and 0 < almost any
// threshold would otherwise produce a false positive on bad geometry.
func EvaluateBBox(b detection.BBox, th BBoxThresholds) bool {
	if b.W == 0 {
		return false
	}
	return b.AspectRatio() < th.FallThreshold
}

// PoseThresholds configures the pose-based fall rule.
type PoseThresholds struct {
	// TorsoAngleThreshold: torso angle (degrees from vertical) at or above
	// this is classified as fallen. Default 60 (spec.md §6).
	TorsoAngleThreshold float64

	// MinVisibility: shoulder/hip keypoints below this visibility make the
	// pose unusable for the rule — EvaluatePose returns false rather than
	// risk a confident call on noisy geometry. Default 0.3 (spec.md §6).
	MinVisibility float64
}

// DefaultPoseThresholds returns the spec-documented defaults.
func DefaultPoseThresholds() PoseThresholds {
	return PoseThresholds{TorsoAngleThreshold: 60.0, MinVisibility: 0.3}
}

// EvaluatePose classifies a Skeleton detection as fallen or not. If the
// shoulder/hip keypoints are not visible enough to trust the resulting
// torso angle, the pose is treated as not fallen (spec.md §4.2 edge case:
// "low-confidence pose never escalates").
func EvaluatePose(s detection.Skeleton, th PoseThresholds) bool {
	vis := s.MinVisibility(
		detection.KPLeftShoulder, detection.KPRightShoulder,
		detection.KPLeftHip, detection.KPRightHip,
	)
	if vis < th.MinVisibility {
		return false
	}
	return s.TorsoAngle() >= th.TorsoAngleThreshold
}

// PoseConfidence returns a ramped confidence in [0,1] for how far the
// torso angle sits past the fall threshold, for observers that want a
// graded signal rather than a boolean (e.g. re-notification severity
// in future tooling). 0 below the threshold, 1 at TorsoAngleThreshold+30°
// or beyond, linear in between. Visibility gating is unchanged from
// EvaluatePose: an insufficiently visible pose reports 0 confidence.
func PoseConfidence(s detection.Skeleton, th PoseThresholds) float64 {
	vis := s.MinVisibility(
		detection.KPLeftShoulder, detection.KPRightShoulder,
		detection.KPLeftHip, detection.KPRightHip,
	)
	if vis < th.MinVisibility {
		return 0
	}
	angle := s.TorsoAngle()
	if angle < th.TorsoAngleThreshold {
		return 0
	}
	const ramp = 30.0
	c := (angle - th.TorsoAngleThreshold) / ramp
	if c > 1 {
		c = 1
	}
	return c
}

// Evaluate dispatches on the detection's Kind and applies the matching
// rule. Thresholds for the kind not in use are ignored.
func Evaluate(d detection.Detection, bboxTh BBoxThresholds, poseTh PoseThresholds) bool {
	switch d.Kind {
	case detection.KindBBox:
		return EvaluateBBox(d.BBox, bboxTh)
	case detection.KindSkeleton:
		return EvaluatePose(d.Skeleton, poseTh)
	default:
		return false
	}
}
