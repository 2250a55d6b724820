// Package testutil provides shared test helpers and pose fixtures.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/posture.report/internal/pose"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// neutralXY is a front-facing upright subject in normalized image
// coordinates, laid out in the 33-landmark detector order.
var neutralXY = [pose.CanonicalLandmarks][2]float64{
	{0.50, 0.15}, // nose
	{0.51, 0.13}, {0.52, 0.13}, {0.53, 0.13}, // left eye
	{0.49, 0.13}, {0.48, 0.13}, {0.47, 0.13}, // right eye
	{0.55, 0.14}, {0.45, 0.14}, // ears
	{0.51, 0.18}, {0.49, 0.18}, // mouth
	{0.58, 0.28}, {0.42, 0.28}, // shoulders
	{0.61, 0.40}, {0.39, 0.40}, // elbows
	{0.62, 0.52}, {0.38, 0.52}, // wrists
	{0.63, 0.55}, {0.37, 0.55}, // pinkies
	{0.62, 0.56}, {0.38, 0.56}, // index fingers
	{0.61, 0.54}, {0.39, 0.54}, // thumbs
	{0.55, 0.55}, {0.45, 0.55}, // hips
	{0.55, 0.72}, {0.45, 0.72}, // knees
	{0.55, 0.88}, {0.45, 0.88}, // ankles
	{0.55, 0.90}, {0.45, 0.90}, // heels
	{0.56, 0.92}, {0.44, 0.92}, // foot index
}

// NeutralPose returns the canonical upright fixture frame.
func NeutralPose() pose.Frame {
	return MapPose(func(x, y float64) (float64, float64) { return x, y })
}

// ShiftedPose returns NeutralPose with every keypoint offset by (dx, dy).
func ShiftedPose(dx, dy float64) pose.Frame {
	return MapPose(func(x, y float64) (float64, float64) { return x + dx, y + dy })
}

// MapPose applies fn to every keypoint of the neutral fixture.
func MapPose(fn func(x, y float64) (float64, float64)) pose.Frame {
	pts := make([]pose.Keypoint, len(neutralXY))
	for i, p := range neutralXY {
		x, y := fn(p[0], p[1])
		pts[i] = pose.Keypoint{X: x, Y: y}
	}
	return pose.NewFrame(pts)
}

// ScrambledPose returns NeutralPose with even-indexed keypoints moved by +d
// in x and odd-indexed ones by -d. Unlike a uniform shift this cannot be
// removed by a similarity transform.
func ScrambledPose(d float64) pose.Frame {
	pts := NeutralPose().Points()
	for i := range pts {
		if i%2 == 0 {
			pts[i].X += d
		} else {
			pts[i].X -= d
		}
	}
	return pose.NewFrame(pts)
}

// MutatePose returns NeutralPose with the keypoint at idx moved by (dx, dy).
func MutatePose(idx int, dx, dy float64) pose.Frame {
	pts := NeutralPose().Points()
	pts[idx].X += dx
	pts[idx].Y += dy
	return pose.NewFrame(pts)
}

// RepeatPose returns n copies of f.
func RepeatPose(f pose.Frame, n int) []pose.Frame {
	out := make([]pose.Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}
