// Package calibrate measures the natural frame-to-frame variation of a
// reference sequence and derives distance thresholds from it.
package calibrate

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posture.report/internal/pose"
)

// DistantGap is the frame gap of the wide comparison pairs.
const DistantGap = 5

// Multipliers applied to the consecutive-pair median.
const (
	StrictFactor  = 1.2
	NormalFactor  = 2.0
	RelaxedFactor = 3.5
)

// ErrTooShort is returned for sequences with fewer than two frames.
var ErrTooShort = errors.New("calibrate: need at least two frames")

// Summary holds descriptive statistics for one set of distances.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Recommendation is a suggested upper bound on average distance.
type Recommendation struct {
	Strict  float64 `json:"strict"`
	Normal  float64 `json:"normal"`
	Relaxed float64 `json:"relaxed"`
}

// Report is the calibration result for one sequence.
type Report struct {
	Frames         int            `json:"frames"`
	Consecutive    Summary        `json:"consecutive"`
	Distant        Summary        `json:"distant"`
	Recommendation Recommendation `json:"recommendation"`

	ConsecutiveDistances []float64 `json:"consecutive_distances"`
	DistantDistances     []float64 `json:"distant_distances"`
}

// RawDistance is the mean 3D Euclidean distance between matching keypoints
// without any alignment. ok is false when the frames differ in length or
// either is absent.
func RawDistance(a, b pose.Frame) (avg float64, ok bool) {
	if a.IsZero() || a.Len() != b.Len() {
		return 0, false
	}
	d := make([]float64, a.Len())
	for i := range d {
		p, q := a.At(i), b.At(i)
		d[i] = math.Sqrt((p.X-q.X)*(p.X-q.X) + (p.Y-q.Y)*(p.Y-q.Y) + (p.Z-q.Z)*(p.Z-q.Z))
	}
	return stat.Mean(d, nil), true
}

// Calibrate compares every frame with its successor and every other frame
// with the frame DistantGap ahead of it.
func Calibrate(frames []pose.Frame) (Report, error) {
	if len(frames) < 2 {
		return Report{}, ErrTooShort
	}
	r := Report{Frames: len(frames)}

	for i := 0; i+1 < len(frames); i++ {
		if d, ok := RawDistance(frames[i], frames[i+1]); ok {
			r.ConsecutiveDistances = append(r.ConsecutiveDistances, d)
		}
	}
	for i := 0; i < len(frames)-DistantGap; i += 2 {
		j := min(i+DistantGap, len(frames)-1)
		if d, ok := RawDistance(frames[i], frames[j]); ok {
			r.DistantDistances = append(r.DistantDistances, d)
		}
	}

	r.Consecutive = Summarize(r.ConsecutiveDistances)
	r.Distant = Summarize(r.DistantDistances)
	if r.Consecutive.Count > 0 {
		m := r.Consecutive.Median
		r.Recommendation = Recommendation{
			Strict:  m * StrictFactor,
			Normal:  m * NormalFactor,
			Relaxed: m * RelaxedFactor,
		}
	}
	return r, nil
}

// Summarize returns count, mean, min, max and median of xs. The median of an
// even-length set is the mean of the two middle values.
func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := Summary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
	}
	n := len(sorted)
	if n%2 == 1 {
		s.Median = sorted[n/2]
	} else {
		s.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return s
}
