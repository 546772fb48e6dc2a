package landmark

import "testing"

func TestFrameSmootherFirstFrameUnchanged(t *testing.T) {
	fs := NewFrameSmoother(0.5)
	var f Frame
	f[Nose] = Point{X: 0.5, Y: 0.5, Z: 0.1, Score: 0.9}

	_, out := fs.Smooth(f)

	if out[Nose] != f[Nose] {
		t.Errorf("expected first sample to pass through unchanged, got %+v", out[Nose])
	}
}

func TestFrameSmootherConvergesTowardRepeatedMeasurement(t *testing.T) {
	fs := NewFrameSmoother(0.3)
	var f Frame
	f[Nose] = Point{X: 0.0, Y: 0.0, Z: 0.0, Score: 0.9}
	fs, _ = fs.Smooth(f)

	target := Point{X: 1.0, Y: 1.0, Z: 1.0, Score: 0.9}
	var out Frame
	for i := 0; i < 20; i++ {
		fs, out = fs.Smooth(Frame{Nose: target})
	}

	if out[Nose].X < 0.9 {
		t.Errorf("expected smoothed X to converge near 1.0 after repeated measurement, got %v", out[Nose].X)
	}
}

func TestFrameSmootherSkipsUndetectedLandmarks(t *testing.T) {
	fs := NewFrameSmoother(0.5)
	var f Frame
	f[Nose] = Point{X: 0.3, Y: 0.3, Z: 0, Score: 0}

	_, out := fs.Smooth(f)

	if out[Nose] != f[Nose] {
		t.Errorf("expected undetected landmark to pass through unmodified, got %+v", out[Nose])
	}
}

func TestFrameSmootherCloneIndependence(t *testing.T) {
	fs := NewFrameSmoother(0.5)
	var f Frame
	f[Nose] = Point{X: 0.0, Y: 0.0, Z: 0.0, Score: 0.9}
	fs, _ = fs.Smooth(f)

	clone := fs.Clone()
	clone, _ = clone.Smooth(Frame{Nose: Point{X: 5.0, Y: 5.0, Z: 5.0, Score: 0.9}})

	_, originalOut := fs.Smooth(Frame{Nose: Point{X: 0.0, Y: 0.0, Z: 0.0, Score: 0.9}})
	if originalOut[Nose].X > 1.0 {
		t.Errorf("expected original smoother state to be unaffected by clone's updates, got %v", originalOut[Nose].X)
	}
}
