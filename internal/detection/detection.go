// Package detection — detection.go
//
// The Detection tagged variant and its derived geometric properties, per
// spec.md §3. Rather than runtime type assertions on an interface, callers
// switch on Detection.Kind — the idiomatic Go replacement for the source
// pipeline's isinstance(detection, BBox) dispatch (spec.md §9 Design Note).
package detection

import "math"

// Kind tags which variant of Detection is populated.
type Kind int

const (
	KindBBox Kind = iota
	KindSkeleton
)

// String names a Kind for logging and metric labels.
func (k Kind) String() string {
	switch k {
	case KindBBox:
		return "bbox"
	case KindSkeleton:
		return "skeleton"
	default:
		return "unknown"
	}
}

// NumKeypoints is the COCO-17 keypoint count.
const NumKeypoints = 17

// COCO-17 keypoint indices, in the order spec.md §3/GLOSSARY names them.
const (
	KPNose = iota
	KPLeftEye
	KPRightEye
	KPLeftEar
	KPRightEar
	KPLeftShoulder
	KPRightShoulder
	KPLeftElbow
	KPRightElbow
	KPLeftWrist
	KPRightWrist
	KPLeftHip
	KPRightHip
	KPLeftKnee
	KPRightKnee
	KPLeftAnkle
	KPRightAnkle
)

// BBox is an axis-aligned bounding box detection.
type BBox struct {
	X, Y, W, H float64
}

// AspectRatio returns h/w, or 0 if w == 0 (spec.md §3).
func (b BBox) AspectRatio() float64 {
	if b.W == 0 {
		return 0
	}
	return b.H / b.W
}

// Keypoint is one COCO-17 point: (x, y) normalized or pixel-space per the
// producer's contract, plus a visibility/confidence score in [0,1].
type Keypoint struct {
	X, Y, Visibility float64
}

// Skeleton is a 17-keypoint pose detection in COCO-17 order.
type Skeleton struct {
	Keypoints [NumKeypoints]Keypoint
}

// center averages two keypoints' coordinates.
func center(a, b Keypoint) (x, y float64) {
	return (a.X + b.X) / 2, (a.Y + b.Y) / 2
}

// ShoulderCenter returns the midpoint between the left and right shoulders.
func (s Skeleton) ShoulderCenter() (x, y float64) {
	return center(s.Keypoints[KPLeftShoulder], s.Keypoints[KPRightShoulder])
}

// HipCenter returns the midpoint between the left and right hips.
func (s Skeleton) HipCenter() (x, y float64) {
	return center(s.Keypoints[KPLeftHip], s.Keypoints[KPRightHip])
}

// TorsoAngle returns the angle in degrees between the shoulder-center→
// hip-center segment and the vertical image axis: 0 = vertical (standing),
// 90 = horizontal (fallen). Per spec.md §3: atan2(|Δx|, |Δy|).
func (s Skeleton) TorsoAngle() float64 {
	sx, sy := s.ShoulderCenter()
	hx, hy := s.HipCenter()
	dx := math.Abs(hx - sx)
	dy := math.Abs(hy - sy)
	return math.Atan2(dx, dy) * 180.0 / math.Pi
}

// MinVisibility returns the minimum visibility among the given keypoint
// indices — used by the pose rule to gate on shoulder/hip confidence.
func (s Skeleton) MinVisibility(indices ...int) float64 {
	min := math.Inf(1)
	for _, i := range indices {
		if s.Keypoints[i].Visibility < min {
			min = s.Keypoints[i].Visibility
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

// Detection is the tagged variant produced by a Detector: either a BBox or
// a Skeleton, never both.
type Detection struct {
	Kind     Kind
	BBox     BBox
	Skeleton Skeleton
}
