package verdict

import (
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/dtw"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestThresholdsClassify(t *testing.T) {
	tests := []struct {
		name     string
		th       Thresholds
		avg, max float64
		want     Verdict
	}{
		{"single good", SingleFrameThresholds, 0.05, 0.20, Good},
		{"single good blocked by max", SingleFrameThresholds, 0.05, 0.30, Acceptable},
		{"single acceptable", SingleFrameThresholds, 0.15, 0.35, Acceptable},
		{"single fail on avg", SingleFrameThresholds, 0.20, 0.10, Fail},
		{"single fail on max", SingleFrameThresholds, 0.05, 0.40, Fail},
		{"sequence good", SequenceThresholds, 0.14, 0.34, Good},
		{"sequence acceptable", SequenceThresholds, 0.20, 0.45, Acceptable},
		{"sequence fail", SequenceThresholds, 0.25, 0.10, Fail},
		{"infinite fails", SequenceThresholds, math.Inf(1), math.Inf(1), Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.th.Classify(tt.avg, tt.max); got != tt.want {
				t.Errorf("Classify(%v, %v) = %s, want %s", tt.avg, tt.max, got, tt.want)
			}
		})
	}
}

func TestThresholdsDistinctPerMode(t *testing.T) {
	// 0.13 average is acceptable for one frame but good for a sequence.
	assert.Equal(t, Acceptable, SingleFrameThresholds.Classify(0.13, 0.2))
	assert.Equal(t, Good, SequenceThresholds.Classify(0.13, 0.2))
}

func rank(v Verdict) int {
	switch v {
	case Good:
		return 2
	case Acceptable:
		return 1
	default:
		return 0
	}
}

func TestToleranceMonotonic(t *testing.T) {
	tolerances := []float64{0.3, 0.5, 0.8, 1.0, 1.3, 2.0, 3.0}
	for _, base := range []Thresholds{SingleFrameThresholds, SequenceThresholds} {
		for avg := 0.0; avg <= 0.8; avg += 0.02 {
			for maxD := avg; maxD <= 1.2; maxD += 0.05 {
				prev := -1
				for _, tol := range tolerances {
					r := rank(base.Scale(tol).Classify(avg, maxD))
					if r < prev {
						t.Fatalf("avg=%v max=%v: verdict regressed at tolerance %v", avg, maxD, tol)
					}
					prev = r
				}
			}
		}
	}
}

func TestClampTolerance(t *testing.T) {
	tests := []struct {
		in     float64
		want   float64
		wantOK bool
	}{
		{1.0, 1.0, true},
		{0.1, MinTolerance, true},
		{9, MaxTolerance, true},
		{0, 0, false},
		{-1, 0, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		got, ok := ClampTolerance(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ClampTolerance(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(0))
	assert.InDelta(t, 0.5, Confidence(0.1), 1e-12)
	assert.Equal(t, 0.0, Confidence(math.Inf(1)))
	assert.Equal(t, 0.0, Confidence(math.NaN()))
	assert.Greater(t, Confidence(0.05), Confidence(0.2))
}

func TestSimilarityPercent(t *testing.T) {
	assert.Equal(t, 100, SimilarityPercent(0))
	assert.Equal(t, 88, SimilarityPercent(0.0125))
	assert.Equal(t, 0, SimilarityPercent(0.5))
}

func TestEvaluatorAlignment(t *testing.T) {
	e := NewEvaluator()
	f := testutil.NeutralPose()

	r := e.Alignment(align.Align(f, f), DefaultTolerance)
	assert.Equal(t, Good, r.Verdict)
	assert.True(t, r.Verdict.Passed())
	assert.Equal(t, MethodAlignment, r.Method)
	require.NotNil(t, r.Confidence)
	assert.InDelta(t, 1, *r.Confidence, 1e-6)
	assert.Contains(t, r.Reason, "100%")

	r = e.Alignment(align.Align(pose.Frame{}, f), DefaultTolerance)
	assert.Equal(t, Inconclusive, r.Verdict)
	assert.Nil(t, r.Confidence)
	assert.Nil(t, r.Metrics.AvgDistance)
}

func TestEvaluatorAlignmentNaNIsInconclusive(t *testing.T) {
	live := testutil.MutatePose(pose.Nose, math.NaN(), 0)
	r := NewEvaluator().Alignment(align.Align(live, testutil.NeutralPose()), DefaultTolerance)
	assert.Equal(t, Inconclusive, r.Verdict)
}

func TestEvaluatorMatch(t *testing.T) {
	e := NewEvaluator()
	seq := testutil.RepeatPose(testutil.NeutralPose(), 3)

	r := e.Match(dtw.Match(seq, seq, nil), DefaultTolerance)
	assert.Equal(t, Good, r.Verdict)
	assert.Equal(t, MethodDTW, r.Method)

	r = e.Match(dtw.Match(nil, seq, nil), DefaultTolerance)
	assert.Equal(t, Inconclusive, r.Verdict)

	inf := math.Inf(1)
	r = e.Match(dtw.Result{AvgDistance: &inf, MaxDistance: &inf}, DefaultTolerance)
	assert.Equal(t, Fail, r.Verdict)
	require.NotNil(t, r.Confidence)
	assert.Equal(t, 0.0, *r.Confidence)
	assert.Nil(t, r.Metrics.AvgDistance, "infinite distances have no JSON form")
}

func TestEvaluatorDistances(t *testing.T) {
	e := NewEvaluator()
	assert.Equal(t, Inconclusive, e.Distances(nil, f64(0.1), 1, false).Verdict)
	assert.Equal(t, Inconclusive, e.Distances(f64(math.NaN()), f64(0.1), 1, true).Verdict)

	r := e.Distances(f64(0.13), f64(0.2), 1, false)
	assert.Equal(t, Acceptable, r.Verdict)
	assert.True(t, r.Verdict.Passed())
	r = e.Distances(f64(0.13), f64(0.2), 1, true)
	assert.Equal(t, Good, r.Verdict)

	// A generous tolerance rescues the same distances.
	assert.Equal(t, Fail, e.Distances(f64(0.3), f64(0.45), 1, false).Verdict)
	assert.True(t, e.Distances(f64(0.3), f64(0.45), 2, false).Verdict.Passed())
}

func TestHeuristics(t *testing.T) {
	e := NewEvaluator()
	upright := testutil.NeutralPose()
	tilted := testutil.MutatePose(pose.LeftShoulder, 0, 0.02)

	// Collapsed torso: shoulders on top of the hips, so normalised tilt is zero.
	pts := upright.Points()
	pts[pose.LeftShoulder] = pts[pose.LeftHip]
	pts[pose.RightShoulder] = pts[pose.RightHip]
	collapsed := pose.NewFrame(pts)

	tests := []struct {
		name  string
		frame pose.Frame
		cond  Condition
		want  Verdict
	}{
		{"curvature upright trunk", upright, CurvatureRequired, Good},
		{"curvature collapsed trunk", collapsed, CurvatureRequired, Fail},
		{"neutral upright trunk", upright, NeutralAlignment, Fail},
		{"neutral collapsed trunk", collapsed, NeutralAlignment, Good},
		{"symmetry level", upright, Symmetry, Good},
		{"symmetry tilted shoulders", tilted, Symmetry, Fail},
		{"bounded upright trunk", upright, BoundedNeutral, Fail},
		{"bounded collapsed trunk", collapsed, BoundedNeutral, Good},
		{"unknown always passes", tilted, Unknown, Good},
		{"unknown short frame passes", upright.Truncate(5), Unknown, Good},
		{"known short frame", upright.Truncate(5), Symmetry, Inconclusive},
		{"absent frame", pose.Frame{}, Symmetry, Inconclusive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Heuristic(tt.frame, tt.cond)
			assert.Equal(t, tt.want, r.Verdict, r.Reason)
			assert.NotEmpty(t, r.Reason)
			assert.Nil(t, r.Metrics.AvgDistance)
		})
	}
}

func TestMeasureTrunk(t *testing.T) {
	tr, ok := MeasureTrunk(testutil.NeutralPose())
	require.True(t, ok)
	assert.InDelta(t, 1, tr.TiltY, 1e-9)
	assert.InDelta(t, 0, tr.TiltX, 1e-9)
	assert.InDelta(t, 0, tr.ShoulderDiff, 1e-9)
	assert.InDelta(t, 0, tr.HipDiff, 1e-9)

	_, ok = MeasureTrunk(testutil.MutatePose(pose.LeftHip, math.NaN(), 0))
	assert.False(t, ok)
}

func TestParseCondition(t *testing.T) {
	tests := map[string]Condition{
		"espondilolisis":                  CurvatureRequired,
		"Lumbalgia mecánica inespecífica": NeutralAlignment,
		"  escoliosis lumbar ":            Symmetry,
		"hernia de disco lumbar":          BoundedNeutral,
		"symmetry-required":               Symmetry,
		"lumbar disc herniation":          BoundedNeutral,
		"something else":                  Unknown,
		"":                                Unknown,
	}
	for label, want := range tests {
		if got := ParseCondition(label); got != want {
			t.Errorf("ParseCondition(%q) = %s, want %s", label, got, want)
		}
	}

	var c Condition
	require.NoError(t, c.UnmarshalText([]byte("curvature-required")))
	assert.Equal(t, CurvatureRequired, c)
	text, err := c.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "curvature-required", string(text))
	assert.Equal(t, "unknown", Condition(42).String())
}

func TestGuardRecoversPanic(t *testing.T) {
	r := func() (res Result) {
		defer guard(&res)
		panic("index out of range")
	}()
	assert.Equal(t, Inconclusive, r.Verdict)
	assert.True(t, strings.HasPrefix(r.Reason, "evaluation error"))
}
