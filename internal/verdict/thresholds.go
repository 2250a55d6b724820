package verdict

import "math"

// Tolerance bounds. Values outside the range are clamped; non-positive or
// NaN values are rejected.
const (
	DefaultTolerance = 1.0
	MinTolerance     = 0.3
	MaxTolerance     = 3.0
)

// ClampTolerance validates a requested tolerance factor. ok is false when v
// is NaN or not positive; the caller keeps its previous value.
func ClampTolerance(v float64) (float64, bool) {
	if math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return math.Min(MaxTolerance, math.Max(MinTolerance, v)), true
}

// Thresholds are the unscaled good and acceptable limits on the average and
// maximum post-alignment distance.
type Thresholds struct {
	GoodAvg       float64 `json:"good_avg"`
	GoodMax       float64 `json:"good_max"`
	AcceptableAvg float64 `json:"acceptable_avg"`
	AcceptableMax float64 `json:"acceptable_max"`
}

var (
	// SingleFrameThresholds apply to one smoothed frame against one reference frame.
	SingleFrameThresholds = Thresholds{GoodAvg: 0.12, GoodMax: 0.28, AcceptableAvg: 0.20, AcceptableMax: 0.40}

	// SequenceThresholds apply to a DTW match against a reference window.
	SequenceThresholds = Thresholds{GoodAvg: 0.15, GoodMax: 0.35, AcceptableAvg: 0.25, AcceptableMax: 0.50}
)

// Scale multiplies every limit by the tolerance factor t. Invalid t selects
// DefaultTolerance.
func (th Thresholds) Scale(t float64) Thresholds {
	if math.IsNaN(t) || t <= 0 {
		t = DefaultTolerance
	}
	return Thresholds{
		GoodAvg:       th.GoodAvg * t,
		GoodMax:       th.GoodMax * t,
		AcceptableAvg: th.AcceptableAvg * t,
		AcceptableMax: th.AcceptableMax * t,
	}
}

// Classify returns Good, Acceptable or Fail. Infinite distances fail.
func (th Thresholds) Classify(avg, maxD float64) Verdict {
	switch {
	case avg < th.GoodAvg && maxD < th.GoodMax:
		return Good
	case avg < th.AcceptableAvg && maxD < th.AcceptableMax:
		return Acceptable
	default:
		return Fail
	}
}
