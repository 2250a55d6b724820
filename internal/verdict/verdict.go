// Package verdict turns alignment residuals into a discrete match verdict
// with a tunable tolerance, and falls back to per-condition trunk heuristics
// when there is no reference to compare against.
package verdict

import (
	"fmt"
	"math"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/dtw"
	"github.com/banshee-data/posture.report/internal/pose"
)

// Verdict is the outcome of one evaluation.
type Verdict string

const (
	Good         Verdict = "GOOD"
	Acceptable   Verdict = "ACCEPTABLE"
	Fail         Verdict = "FAIL"
	Inconclusive Verdict = "INCONCLUSIVE"
)

// Passed reports the externally visible pass state. Good and Acceptable
// both pass; they differ only in their reason text.
func (v Verdict) Passed() bool {
	return v == Good || v == Acceptable
}

// Method identifies which comparison produced a Result.
type Method string

const (
	MethodAlignment Method = "alignment"
	MethodFallback  Method = "fallback"
	MethodDTW       Method = "dtw"
	MethodHeuristic Method = "heuristic"
	MethodNone      Method = "none"
)

// Common reasons.
const (
	ReasonNoPose           = "no pose detected"
	ReasonNotRecognized    = "posture not recognized"
	ReasonWithinParameters = "posture within expected parameters"
	ReasonNoComparison     = "could not compare with the reference"
	ReasonNoTorso          = "torso landmarks missing or invalid"
)

// Metrics carries the distances a verdict was decided on. Either may be nil.
type Metrics struct {
	AvgDistance *float64 `json:"avg_distance"`
	MaxDistance *float64 `json:"max_distance"`
}

// Result is a verdict with its explanation.
type Result struct {
	Verdict    Verdict   `json:"verdict"`
	Reason     string    `json:"reason"`
	Metrics    Metrics   `json:"metrics"`
	Confidence *float64  `json:"confidence"`
	Method     Method    `json:"method"`
	Condition  Condition `json:"condition,omitempty"`
	Trunk      *Trunk    `json:"trunk,omitempty"`
}

// Inconclude returns an INCONCLUSIVE result with reason.
func Inconclude(reason string) Result {
	return Result{Verdict: Inconclusive, Reason: reason, Method: MethodNone}
}

// Confidence maps an average distance to [0, 1]: 1 - avg/(avg+0.1).
func Confidence(avg float64) float64 {
	if avg <= 0 {
		return 1
	}
	if math.IsNaN(avg) || math.IsInf(avg, 1) {
		return 0
	}
	c := 1 - avg/(avg+0.1)
	return math.Min(1, math.Max(0, c))
}

// SimilarityPercent is max(0, 100 - int(avg*1000)).
func SimilarityPercent(avg float64) int {
	if math.IsInf(avg, 1) || avg >= 0.1 {
		return 0
	}
	return max(0, 100-int(avg*1000))
}

// Evaluator applies tolerance-scaled thresholds. The zero value is not
// usable; call NewEvaluator.
type Evaluator struct {
	Single   Thresholds
	Sequence Thresholds
}

// NewEvaluator returns an evaluator with the calibrated thresholds.
func NewEvaluator() *Evaluator {
	return &Evaluator{Single: SingleFrameThresholds, Sequence: SequenceThresholds}
}

// Alignment evaluates a single-frame alignment against the reference.
func (e *Evaluator) Alignment(r align.Result, tolerance float64) (res Result) {
	defer guard(&res)

	method := MethodAlignment
	if r.Status == align.FallbackAligned {
		method = MethodFallback
	}
	avg, okA := r.Mean()
	maxD, okM := r.Max()
	if !okA || !okM {
		return Inconclude(ReasonNoComparison)
	}
	res = e.decide(e.Single.Scale(tolerance), avg, maxD, singleReasons)
	res.Method = method
	return res
}

// Match evaluates a DTW match of the live buffer against a reference window.
func (e *Evaluator) Match(r dtw.Result, tolerance float64) (res Result) {
	defer guard(&res)

	if !r.Comparable() {
		return Inconclude(ReasonNoComparison + " (dtw)")
	}
	res = e.decide(e.Sequence.Scale(tolerance), *r.AvgDistance, *r.MaxDistance, sequenceReasons)
	res.Method = MethodDTW
	return res
}

// Distances evaluates precomputed distances. sequence selects the DTW
// thresholds. Either distance nil yields INCONCLUSIVE.
func (e *Evaluator) Distances(avg, maxD *float64, tolerance float64, sequence bool) (res Result) {
	defer guard(&res)

	if avg == nil || maxD == nil {
		return Inconclude(ReasonNoComparison)
	}
	th, reasons, method := e.Single, singleReasons, MethodAlignment
	if sequence {
		th, reasons, method = e.Sequence, sequenceReasons, MethodDTW
	}
	res = e.decide(th.Scale(tolerance), *avg, *maxD, reasons)
	res.Method = method
	return res
}

// Heuristic evaluates a frame against condition c without a reference.
func (e *Evaluator) Heuristic(f pose.Frame, c Condition) (res Result) {
	defer guard(&res)

	if f.IsZero() {
		return Inconclude(ReasonNoPose)
	}
	if c == Unknown {
		return Result{Verdict: Good, Reason: ReasonWithinParameters, Method: MethodHeuristic, Condition: c}
	}
	tr, ok := MeasureTrunk(f)
	if !ok {
		res = Inconclude(ReasonNoTorso)
		res.Condition = c
		return res
	}
	pass, passReason, failReason := c.check(tr)
	res = Result{Verdict: Fail, Reason: failReason, Method: MethodHeuristic, Condition: c, Trunk: &tr}
	if pass {
		res.Verdict, res.Reason = Good, passReason
	}
	return res
}

type reasons struct {
	good, acceptable, fail string
}

var (
	singleReasons = reasons{
		good:       "excellent match with the reference (%d%%)",
		acceptable: "good posture, reasonably close to the reference (%d%%)",
		fail:       "posture deviates from the reference; adjust your alignment",
	}
	sequenceReasons = reasons{
		good:       "movement closely follows the reference (%d%% match)",
		acceptable: "movement acceptable (%d%%)",
		fail:       "movement does not match the reference; try adjusting pace or angles",
	}
)

func (e *Evaluator) decide(th Thresholds, avg, maxD float64, rs reasons) Result {
	if math.IsNaN(avg) || math.IsNaN(maxD) {
		return Inconclude(ReasonNoComparison)
	}
	conf := Confidence(avg)
	res := Result{
		Metrics:    Metrics{AvgDistance: finite(avg), MaxDistance: finite(maxD)},
		Confidence: &conf,
	}
	switch th.Classify(avg, maxD) {
	case Good:
		res.Verdict, res.Reason = Good, fmt.Sprintf(rs.good, SimilarityPercent(avg))
	case Acceptable:
		res.Verdict, res.Reason = Acceptable, fmt.Sprintf(rs.acceptable, SimilarityPercent(avg))
	default:
		res.Verdict, res.Reason = Fail, rs.fail
	}
	return res
}

// finite returns &v, or nil when v is infinite and so has no JSON form.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// guard converts a panic inside an evaluation into INCONCLUSIVE.
func guard(res *Result) {
	if r := recover(); r != nil {
		*res = Inconclude(fmt.Sprintf("evaluation error: %v", r))
	}
}
