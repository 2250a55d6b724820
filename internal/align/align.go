package align

import (
	"errors"
	"math"

	"github.com/banshee-data/posture.report/internal/pose"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnavailable indicates that no alignment could be attempted because one
// of the frames is absent.
var ErrUnavailable = errors.New("align: frame absent")

// Status reports which path produced an alignment result.
type Status int

const (
	// Unavailable means one of the inputs was absent; there are no residuals.
	Unavailable Status = iota
	// Aligned means the Umeyama similarity fit succeeded.
	Aligned
	// FallbackAligned means the fit failed and both frames were compared
	// after pelvis normalisation instead.
	FallbackAligned
)

func (s Status) String() string {
	switch s {
	case Aligned:
		return "aligned"
	case FallbackAligned:
		return "fallback"
	default:
		return "unavailable"
	}
}

// Result is the outcome of aligning a live frame onto a reference frame.
type Result struct {
	Status Status
	// Transform is Identity for FallbackAligned.
	Transform
	Residuals []float64 // per keypoint, after alignment
	Aligned   []Point   // the live keypoints in reference coordinates
	Reference []Point   // the reference keypoints the residuals were measured against
	FitError  error     // why the similarity fit was abandoned, if it was
}

// Mean returns the mean residual. ok is false when there are none.
func (r Result) Mean() (float64, bool) {
	if len(r.Residuals) == 0 {
		return 0, false
	}
	return stat.Mean(r.Residuals, nil), true
}

// Max returns the largest residual. ok is false when there are none.
func (r Result) Max() (float64, bool) {
	if len(r.Residuals) == 0 {
		return 0, false
	}
	return floats.Max(r.Residuals), true
}

// Align aligns live onto ref. When the frames differ in length both are
// truncated to the shorter, keeping the leading keypoints. Only X and Y take
// part. If the similarity fit fails for any reason the frames are compared
// after pelvis normalisation; that path always yields residuals.
func Align(live, ref pose.Frame) Result {
	if live.IsZero() || ref.IsZero() {
		return Result{Status: Unavailable}
	}

	n := min(live.Len(), ref.Len())
	src := xy(live, n)
	dst := xy(ref, n)

	t, err := Similarity(src, dst)
	if err == nil {
		moved := make([]Point, n)
		for i, p := range src {
			moved[i] = t.Apply(p)
		}
		res := residuals(moved, dst)
		if allFinite(res) {
			return Result{Status: Aligned, Transform: t, Residuals: res, Aligned: moved, Reference: dst}
		}
		err = ErrNonFinite
	}

	return fallback(live, ref, n, err)
}

// Distances returns the per-keypoint residuals after aligning live onto ref.
func Distances(live, ref pose.Frame) []float64 {
	return Align(live, ref).Residuals
}

// FrameDistance is the mean post-alignment residual between two frames. It
// is the per-pair cost used by temporal matching.
func FrameDistance(a, b pose.Frame) (float64, error) {
	r := Align(a, b)
	m, ok := r.Mean()
	if !ok {
		return math.Inf(1), ErrUnavailable
	}
	if math.IsNaN(m) {
		return math.Inf(1), ErrNonFinite
	}
	return m, nil
}

func fallback(live, ref pose.Frame, n int, cause error) Result {
	src := xy(pose.NormalizeByPelvis(live), n)
	dst := xy(pose.NormalizeByPelvis(ref), n)
	return Result{
		Status:    FallbackAligned,
		Transform: Identity(),
		Residuals: residuals(src, dst),
		Aligned:   src,
		Reference: dst,
		FitError:  cause,
	}
}

func xy(f pose.Frame, n int) []Point {
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		k := f.At(i)
		pts[i] = Point{k.X, k.Y}
	}
	return pts
}

func residuals(a, b []Point) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Hypot(a[i][0]-b[i][0], a[i][1]-b[i][1])
	}
	return out
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
