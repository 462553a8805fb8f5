package detection

import "testing"

func TestBBox_AspectRatio(t *testing.T) {
	cases := []struct {
		name string
		b    BBox
		want float64
	}{
		{"standing", BBox{W: 50, H: 150}, 3.0},
		{"fallen", BBox{W: 150, H: 50}, 1.0 / 3.0},
		{"zero width", BBox{W: 0, H: 100}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.b.AspectRatio(); got != c.want {
				t.Errorf("AspectRatio() = %v, want %v", got, c.want)
			}
		})
	}
}

func standingSkeleton() Skeleton {
	var s Skeleton
	s.Keypoints[KPLeftShoulder] = Keypoint{X: 10, Y: 0, Visibility: 1}
	s.Keypoints[KPRightShoulder] = Keypoint{X: 12, Y: 0, Visibility: 1}
	s.Keypoints[KPLeftHip] = Keypoint{X: 10, Y: 10, Visibility: 1}
	s.Keypoints[KPRightHip] = Keypoint{X: 12, Y: 10, Visibility: 1}
	return s
}

func fallenSkeleton() Skeleton {
	var s Skeleton
	s.Keypoints[KPLeftShoulder] = Keypoint{X: 0, Y: 5, Visibility: 1}
	s.Keypoints[KPRightShoulder] = Keypoint{X: 0, Y: 7, Visibility: 1}
	s.Keypoints[KPLeftHip] = Keypoint{X: 10, Y: 5, Visibility: 1}
	s.Keypoints[KPRightHip] = Keypoint{X: 10, Y: 7, Visibility: 1}
	return s
}

func TestSkeleton_TorsoAngle_StandingIsNearZero(t *testing.T) {
	s := standingSkeleton()
	angle := s.TorsoAngle()
	if angle > 1.0 {
		t.Errorf("standing torso angle = %v, want near 0", angle)
	}
}

func TestSkeleton_TorsoAngle_FallenIsNear90(t *testing.T) {
	s := fallenSkeleton()
	angle := s.TorsoAngle()
	if angle < 89.0 {
		t.Errorf("fallen torso angle = %v, want near 90", angle)
	}
}

func TestSkeleton_MinVisibility(t *testing.T) {
	s := standingSkeleton()
	s.Keypoints[KPLeftHip].Visibility = 0.2
	got := s.MinVisibility(KPLeftShoulder, KPRightShoulder, KPLeftHip, KPRightHip)
	if got != 0.2 {
		t.Errorf("MinVisibility() = %v, want 0.2", got)
	}
}

func TestSkeleton_MinVisibility_NoIndices(t *testing.T) {
	s := standingSkeleton()
	if got := s.MinVisibility(); got != 0 {
		t.Errorf("MinVisibility() with no indices = %v, want 0", got)
	}
}

func TestSkeleton_ShoulderAndHipCenter(t *testing.T) {
	s := standingSkeleton()
	sx, sy := s.ShoulderCenter()
	if sx != 11 || sy != 0 {
		t.Errorf("ShoulderCenter() = (%v, %v), want (11, 0)", sx, sy)
	}
	hx, hy := s.HipCenter()
	if hx != 11 || hy != 10 {
		t.Errorf("HipCenter() = (%v, %v), want (11, 10)", hx, hy)
	}
}
