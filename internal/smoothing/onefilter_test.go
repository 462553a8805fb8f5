package smoothing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/kionce57/falldetect/internal/detection"
)

func TestNew_RejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name                        string
		minCutoff, beta, dCutoff float64
	}{
		{"zero min_cutoff", 0, 0.5, 1},
		{"negative min_cutoff", -1, 0.5, 1},
		{"zero d_cutoff", 1, 0.5, 0},
		{"negative beta", 1, -0.1, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(c.minCutoff, c.beta, c.dCutoff); err == nil {
				t.Errorf("expected error for %s", c.name)
			}
		})
	}
}

func skeletonAt(x, y float64) detection.Skeleton {
	var s detection.Skeleton
	for i := range s.Keypoints {
		s.Keypoints[i] = detection.Keypoint{X: x, Y: y, Visibility: 1}
	}
	return s
}

func TestFilter_FirstFramePassesThroughUnchanged(t *testing.T) {
	f, err := New(1.0, 0.007, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	in := skeletonAt(10, 20)
	out := f.Apply(in, 1.0/30.0)
	if out.Keypoints[0] != in.Keypoints[0] {
		t.Errorf("first frame should pass through unfiltered, got %+v want %+v", out.Keypoints[0], in.Keypoints[0])
	}
}

func TestFilter_SmoothsJitterBelowRawNoise(t *testing.T) {
	f, err := New(1.0, 0.007, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	const dt = 1.0 / 30.0

	var rawDeltaSum, smoothedDeltaSum float64
	prevRaw := 100.0
	var prevSmoothed float64
	first := true
	for i := 0; i < 200; i++ {
		noisy := 100 + rng.NormFloat64()*2.0
		s := skeletonAt(noisy, 50)
		out := f.Apply(s, dt)
		if !first {
			rawDeltaSum += math.Abs(noisy - prevRaw)
			smoothedDeltaSum += math.Abs(out.Keypoints[0].X - prevSmoothed)
		}
		prevRaw = noisy
		prevSmoothed = out.Keypoints[0].X
		first = false
	}
	if smoothedDeltaSum >= rawDeltaSum {
		t.Errorf("expected smoothed frame-to-frame delta sum (%v) < raw (%v)", smoothedDeltaSum, rawDeltaSum)
	}
}

func TestFilter_ConvergesToConstantSignalWithoutPermanentLag(t *testing.T) {
	f, err := New(1.0, 0.5, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	const dt = 1.0 / 30.0
	var out detection.Skeleton
	for i := 0; i < 500; i++ {
		out = f.Apply(skeletonAt(42, 7), dt)
	}
	if math.Abs(out.Keypoints[0].X-42) > 1e-6 {
		t.Errorf("filter should converge to a constant signal, got %v want 42", out.Keypoints[0].X)
	}
}

func TestFilter_Reset(t *testing.T) {
	f, err := New(1.0, 0.007, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.Apply(skeletonAt(100, 100), 1.0/30.0)
	f.Apply(skeletonAt(100, 100), 1.0/30.0)
	f.Reset()
	out := f.Apply(skeletonAt(5, 5), 1.0/30.0)
	if out.Keypoints[0].X != 5 {
		t.Errorf("after Reset, first Apply should pass through unfiltered, got %v", out.Keypoints[0].X)
	}
}

func TestFilter_ResetKeypoint_OnlyAffectsOneIndex(t *testing.T) {
	f, err := New(1.0, 0.007, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.Apply(skeletonAt(100, 100), 1.0/30.0)
	f.Apply(skeletonAt(100, 100), 1.0/30.0)
	f.ResetKeypoint(detection.KPNose)

	out := f.Apply(skeletonAt(5, 5), 1.0/30.0)
	if out.Keypoints[detection.KPNose].X != 5 {
		t.Errorf("reset keypoint should pass through unfiltered, got %v", out.Keypoints[detection.KPNose].X)
	}
	if out.Keypoints[detection.KPLeftShoulder].X == 5 {
		t.Errorf("non-reset keypoint should still be smoothed, not pass through raw")
	}
}

func TestFilter_ResetKeypoint_OutOfRangeIsNoop(t *testing.T) {
	f, err := New(1.0, 0.007, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.ResetKeypoint(-1)
	f.ResetKeypoint(detection.NumKeypoints)
}
