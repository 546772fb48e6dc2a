package landmark

// pointFilter is a simple 1D Kalman filter used to pre-smooth one
// coordinate of one raw landmark before any angle is computed from it,
// complementing pkg/smoothing's EMA filtering of the derived angle
// streams themselves.
type pointFilter struct {
	x           float64
	p           float64
	q           float64
	r           float64
	initialized bool
}

// newPointFilter creates a 1D Kalman filter. smoothingFactor trades off
// smoothness against responsiveness: 0 is maximum smoothing, 1 is the
// lightest smoothing (the filter still smooths at 1).
func newPointFilter(smoothingFactor float64) pointFilter {
	if smoothingFactor < 0 {
		smoothingFactor = 0
	}
	if smoothingFactor > 1 {
		smoothingFactor = 1
	}
	return pointFilter{
		p: 1.0,
		q: 0.1,
		r: 1.0 - smoothingFactor*0.9 + 0.1,
	}
}

func (kf pointFilter) update(measurement float64) pointFilter {
	if !kf.initialized {
		kf.x = measurement
		kf.initialized = true
		return kf
	}
	pPred := kf.p + kf.q
	k := pPred / (pPred + kf.r)
	kf.x = kf.x + k*(measurement-kf.x)
	kf.p = (1 - k) * pPred
	return kf
}

// point3Filter applies a pointFilter independently to each of a point's
// three coordinates.
type point3Filter struct {
	x, y, z pointFilter
}

func newPoint3Filter(smoothingFactor float64) point3Filter {
	return point3Filter{
		x: newPointFilter(smoothingFactor),
		y: newPointFilter(smoothingFactor),
		z: newPointFilter(smoothingFactor),
	}
}

func (f point3Filter) update(p Point) (point3Filter, Point) {
	f.x = f.x.update(p.X)
	f.y = f.y.update(p.Y)
	f.z = f.z.update(p.Z)
	return f, Point{X: f.x.x, Y: f.y.x, Z: f.z.x, Score: p.Score}
}

// FrameSmoother pre-filters every landmark in a Frame with an independent
// 3D Kalman filter, run ahead of the geometry layer to reduce raw
// detector jitter before angles are ever computed. This is optional: every
// exercise analyzer works directly from raw frames too. State is threaded
// explicitly by value, consistent with every other analyzer in this
// module — construct with NewFrameSmoother, update via Smooth, never
// mutated in place.
type FrameSmoother struct {
	factor  float64
	filters [NumLandmarks]point3Filter
	seeded  [NumLandmarks]bool
}

// NewFrameSmoother creates a frame-level pre-smoother. smoothingFactor is
// shared across all 33 landmarks.
func NewFrameSmoother(smoothingFactor float64) FrameSmoother {
	fs := FrameSmoother{factor: smoothingFactor}
	for i := range fs.filters {
		fs.filters[i] = newPoint3Filter(smoothingFactor)
	}
	return fs
}

// Smooth filters every point in f, returning the smoothed frame and the
// updated smoother state. Points with a zero detector score (treated as
// undetected) pass through unfiltered and do not update that landmark's
// filter state, so a dropped detection does not pull the filter toward
// the origin.
func (fs FrameSmoother) Smooth(f Frame) (FrameSmoother, Frame) {
	var out Frame
	for i := range f {
		if f[i].Score <= 0 {
			out[i] = f[i]
			continue
		}
		fs.filters[i], out[i] = fs.filters[i].update(f[i])
		fs.seeded[i] = true
	}
	return fs, out
}

// Clone returns an independent copy of the smoother state. FrameSmoother
// holds no pointers, so copying the value is already independent; Clone
// exists to match the Clone convention every other stateful component in
// this module follows.
func (fs FrameSmoother) Clone() FrameSmoother {
	return fs
}
