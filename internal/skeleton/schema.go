// Package skeleton — schema.go
//
// SkeletonSequence is the on-disk JSON document recording the pose
// time series around a fall event, for later review or model retraining.
// The shape and its invariants follow the original pipeline's
// skeleton_schema (original_source/src/lifecycle/schema/
// {formats,validator}.py), which spec.md's distillation only summarized
// in one paragraph (spec.md §3). The top level written here is event_id,
// keypoint_format, metadata, sequence and an optional analysis block; it
// carries no version field.
package skeleton

import "github.com/kionce57/falldetect/internal/detection"

// KeypointFormat names which keypoint layout a sequence uses. Only
// COCO17 is produced by this agent's detectors, but the field is kept so
// that sequences stay self-describing if a MediaPipe-33 detector is
// added later (contrib.RegisterEngine makes that an additive change).
type KeypointFormat string

const (
	FormatCOCO17      KeypointFormat = "coco17"
	FormatMediaPipe33 KeypointFormat = "mediapipe33"
)

// expectedKeypointCount mirrors get_keypoint_count() from the original
// formats.py.
func expectedKeypointCount(f KeypointFormat) int {
	switch f {
	case FormatCOCO17:
		return detection.NumKeypoints
	case FormatMediaPipe33:
		return 33
	default:
		return 0
	}
}

// KeypointRecord is one keypoint's recorded position within a frame.
type KeypointRecord struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// FrameRecord is one frame's pose within a sequence.
type FrameRecord struct {
	FrameIdx  int              `json:"frame_idx"`
	Timestamp float64          `json:"timestamp"`
	Keypoints []KeypointRecord `json:"keypoints"`
}

// Metadata describes the capture context for a sequence.
type Metadata struct {
	EventID     string  `json:"event_id"`
	CameraID    string  `json:"camera_id,omitempty"`
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps,omitempty"`
}

// Analysis carries the optional post-hoc fall-frame annotation.
type Analysis struct {
	FallFrameIdx *int    `json:"fall_frame_idx,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// SkeletonSequence is the full document persisted for a suspected or
// confirmed fall event.
type SkeletonSequence struct {
	EventID        string         `json:"event_id"`
	KeypointFormat KeypointFormat `json:"keypoint_format"`
	Metadata       Metadata       `json:"metadata"`
	Sequence       []FrameRecord  `json:"sequence"`
	Analysis       *Analysis      `json:"analysis,omitempty"`
}

// FromSkeletons builds a SkeletonSequence from raw detection.Skeleton
// samples collected by the Collector, in capture order.
func FromSkeletons(eventID, cameraID string, fps float64, totalFrames int, samples []TimestampedSkeleton) SkeletonSequence {
	names := coco17Names
	seq := make([]FrameRecord, len(samples))
	for i, s := range samples {
		kps := make([]KeypointRecord, detection.NumKeypoints)
		for j := 0; j < detection.NumKeypoints; j++ {
			kp := s.Skeleton.Keypoints[j]
			kps[j] = KeypointRecord{Name: names[j], X: kp.X, Y: kp.Y, Visibility: kp.Visibility}
		}
		seq[i] = FrameRecord{FrameIdx: i, Timestamp: s.Timestamp, Keypoints: kps}
	}
	return SkeletonSequence{
		EventID:        eventID,
		KeypointFormat: FormatCOCO17,
		Metadata: Metadata{
			EventID:     eventID,
			CameraID:    cameraID,
			TotalFrames: totalFrames,
			FPS:         fps,
		},
		Sequence: seq,
	}
}

// TimestampedSkeleton pairs a Skeleton with its capture timestamp, the
// unit the Collector accumulates between extraction jobs.
type TimestampedSkeleton struct {
	Timestamp float64
	Skeleton  detection.Skeleton
}

var coco17Names = [detection.NumKeypoints]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}
