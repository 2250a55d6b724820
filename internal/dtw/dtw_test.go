package dtw

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scalarFrames encodes each value as a one-point frame so tests can drive
// Match with a plain absolute-difference distance.
func scalarFrames(vals ...float64) []pose.Frame {
	out := make([]pose.Frame, len(vals))
	for i, v := range vals {
		out[i] = pose.NewFrame([]pose.Keypoint{{X: v}})
	}
	return out
}

func absDiff(a, b pose.Frame) (float64, error) {
	return math.Abs(a.At(0).X - b.At(0).X), nil
}

func TestMatch_EmptyInput(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b []pose.Frame
	}{
		{"both empty", nil, nil},
		{"a empty", nil, scalarFrames(1)},
		{"b empty", scalarFrames(1), nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := Match(tc.a, tc.b, absDiff)
			assert.Nil(t, r.AvgDistance)
			assert.Nil(t, r.MaxDistance)
			assert.False(t, r.Comparable())
			assert.True(t, math.IsInf(r.TotalCost, 1))
			assert.Equal(t, 0, r.PathLen)
		})
	}
}

func TestMatch_IdenticalSequences(t *testing.T) {
	a := scalarFrames(0, 1, 2, 3, 2, 1)
	r := Match(a, a, absDiff)
	require.True(t, r.Comparable())
	assert.InDelta(t, 0, *r.AvgDistance, 1e-12)
	assert.InDelta(t, 0, *r.MaxDistance, 1e-12)
	assert.Equal(t, len(a), r.PathLen)
	assert.Equal(t, 0.0, r.TotalCost)
	for k, c := range r.Path {
		if c.I != k || c.J != k {
			t.Errorf("path[%d] = %+v, want diagonal", k, c)
		}
	}
}

func TestMatch_IdenticalPoseSequences(t *testing.T) {
	seq := []pose.Frame{
		testutil.NeutralPose(),
		testutil.MutatePose(pose.LeftKnee, 0.05, 0),
		testutil.MutatePose(pose.LeftKnee, 0.10, 0),
	}
	r := Match(seq, seq, nil)
	require.True(t, r.Comparable())
	assert.InDelta(t, 0, *r.AvgDistance, 1e-9)
	assert.Equal(t, 3, r.PathLen)
}

func TestMatch_PathEndpointsAndMonotonic(t *testing.T) {
	a := scalarFrames(0, 0, 1, 2, 3)
	b := scalarFrames(0, 1, 1, 1, 2, 2, 3, 3)
	r := Match(a, b, absDiff)
	require.NotEmpty(t, r.Path)

	assert.Equal(t, Coord{0, 0}, r.Path[0])
	assert.Equal(t, Coord{len(a) - 1, len(b) - 1}, r.Path[len(r.Path)-1])
	for k := 1; k < len(r.Path); k++ {
		di := r.Path[k].I - r.Path[k-1].I
		dj := r.Path[k].J - r.Path[k-1].J
		if di < 0 || dj < 0 || di > 1 || dj > 1 || di+dj == 0 {
			t.Fatalf("non-monotonic step %+v -> %+v", r.Path[k-1], r.Path[k])
		}
	}
	// Time-warped copies of the same ramp align at zero cost.
	assert.InDelta(t, 0, *r.AvgDistance, 1e-12)
	assert.Equal(t, 0.0, r.TotalCost)
}

func TestMatch_KnownCost(t *testing.T) {
	a := scalarFrames(1, 2, 3)
	b := scalarFrames(2, 2, 4)
	r := Match(a, b, absDiff)

	// fd = [[1 1 3] [0 0 2] [1 1 1]]; best path (0,0)(1,1)(2,2) costs 1+0+1.
	assert.Equal(t, 2.0, r.TotalCost)
	want := []Coord{{0, 0}, {1, 1}, {2, 2}}
	if diff := cmp.Diff(want, r.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 2.0/3, *r.AvgDistance, 1e-12)
	assert.Equal(t, 1.0, *r.MaxDistance)
}

func TestMatch_TieBreakPrefersDiagonal(t *testing.T) {
	// Every pairwise distance is zero, so every finite predecessor ties.
	r := Match(scalarFrames(5, 5, 5), scalarFrames(5, 5), absDiff)
	// (3,2) takes the diagonal to (2,1); from there only up is finite.
	want := []Coord{{0, 0}, {1, 0}, {2, 1}}
	if diff := cmp.Diff(want, r.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_TieBreakUpBeforeLeft(t *testing.T) {
	// Only the centre pair is expensive, so at (3,3) the diagonal loses and
	// up and left tie at zero.
	dist := func(a, b pose.Frame) (float64, error) {
		if a.At(0).X == 1 && b.At(0).X == 1 {
			return 10, nil
		}
		return 0, nil
	}
	r := Match(scalarFrames(0, 1, 2), scalarFrames(0, 1, 2), dist)
	want := []Coord{{0, 0}, {0, 1}, {1, 2}, {2, 2}}
	if diff := cmp.Diff(want, r.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.0, r.TotalCost)
}

func TestMatch_FailingDistanceIsInfinite(t *testing.T) {
	boom := errors.New("boom")
	dist := func(a, b pose.Frame) (float64, error) {
		if a.At(0).X == 1 && b.At(0).X == 1 {
			return 0, boom
		}
		return math.Abs(a.At(0).X - b.At(0).X), nil
	}
	r := Match(scalarFrames(0, 1), scalarFrames(0, 1), dist)
	require.True(t, r.Comparable())
	assert.True(t, math.IsInf(*r.MaxDistance, 1))
	assert.True(t, math.IsInf(r.TotalCost, 1))

	nan := func(a, b pose.Frame) (float64, error) { return math.NaN(), nil }
	r = Match(scalarFrames(0), scalarFrames(0), nan)
	assert.True(t, math.IsInf(*r.AvgDistance, 1))
}
