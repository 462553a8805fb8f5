// Package skeleton — validator.go
//
// Semantic validation for SkeletonSequence, ported from the original
// pipeline's SkeletonValidator._validate_semantics (original_source/src/
// lifecycle/schema/validator.py). Go's static struct shape already
// enforces what the original's JSON Schema layer checked (required
// fields, types), so only the five semantic invariants are reproduced
// here.
package skeleton

import "fmt"

// ValidationError reports a single semantic invariant violation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validate checks the five semantic invariants the original validator
// enforces beyond plain structural validity:
//
//  1. no frame's keypoint count exceeds the format's expected count
//  2. frame_idx values are strictly ascending
//  3. timestamps are monotonically non-decreasing
//  4. sequence length does not exceed metadata.total_frames
//  5. analysis.fall_frame_idx, if present, does not exceed the max frame_idx
func Validate(seq SkeletonSequence) error {
	expected := expectedKeypointCount(seq.KeypointFormat)
	if expected == 0 {
		return &ValidationError{Reason: fmt.Sprintf("unknown keypoint_format %q", seq.KeypointFormat)}
	}

	maxIdx := -1
	for i, frame := range seq.Sequence {
		if len(frame.Keypoints) > expected {
			return &ValidationError{Reason: fmt.Sprintf(
				"frame %d: keypoint count (%d) exceeds expected (%d) for format %q",
				frame.FrameIdx, len(frame.Keypoints), expected, seq.KeypointFormat)}
		}
		if i > 0 && frame.FrameIdx <= seq.Sequence[i-1].FrameIdx {
			return &ValidationError{Reason: fmt.Sprintf(
				"frame indices are not ascending: %d followed by %d",
				seq.Sequence[i-1].FrameIdx, frame.FrameIdx)}
		}
		if i > 0 && frame.Timestamp < seq.Sequence[i-1].Timestamp {
			return &ValidationError{Reason: fmt.Sprintf(
				"timestamps are not monotonic: frame %d has %v, frame %d has %v",
				i-1, seq.Sequence[i-1].Timestamp, i, frame.Timestamp)}
		}
		if frame.FrameIdx > maxIdx {
			maxIdx = frame.FrameIdx
		}
	}

	if len(seq.Sequence) > seq.Metadata.TotalFrames {
		return &ValidationError{Reason: fmt.Sprintf(
			"sequence length (%d) exceeds total_frames (%d)",
			len(seq.Sequence), seq.Metadata.TotalFrames)}
	}

	if seq.Analysis != nil && seq.Analysis.FallFrameIdx != nil {
		if *seq.Analysis.FallFrameIdx > maxIdx {
			return &ValidationError{Reason: fmt.Sprintf(
				"analysis.fall_frame_idx (%d) exceeds maximum frame index (%d)",
				*seq.Analysis.FallFrameIdx, maxIdx)}
		}
	}

	return nil
}
