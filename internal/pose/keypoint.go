// Package pose holds the keypoint data model shared by the comparison engine:
// single-instant frames, reference sequences, and the smoothing buffer that
// averages detector jitter out of live input.
package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// BlazePose landmark indices. The comparison engine relies on these fixed
// positions; detectors with a different ordering must remap before ingestion.
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26

	// CanonicalLandmarks is the frame length produced by the reference detector.
	CanonicalLandmarks = 33
)

var (
	// ErrEmptyFrame indicates a frame with no keypoints.
	ErrEmptyFrame = errors.New("pose: frame has no keypoints")

	// ErrPartialFrame indicates a flat coordinate list that is not a whole
	// number of (x, y, z) triples.
	ErrPartialFrame = errors.New("pose: flat coordinates are not a multiple of 3")
)

// Keypoint is one tracked landmark in normalized image coordinates.
// Z is carried for round-tripping but ignored by alignment and comparison.
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Frame is the full set of keypoints detected at one instant. The zero Frame
// represents "no person detected". Frames are immutable: constructors copy
// their input and accessors never expose the backing slice.
type Frame struct {
	points []Keypoint
}

// NewFrame copies points into a new Frame.
func NewFrame(points []Keypoint) Frame {
	if len(points) == 0 {
		return Frame{}
	}
	cp := make([]Keypoint, len(points))
	copy(cp, points)
	return Frame{points: cp}
}

// FromFlat builds a Frame from the detector wire format [x0,y0,z0,x1,y1,z1,...].
func FromFlat(flat []float64) (Frame, error) {
	if len(flat) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	if len(flat)%3 != 0 {
		return Frame{}, fmt.Errorf("%w: got %d values", ErrPartialFrame, len(flat))
	}
	pts := make([]Keypoint, len(flat)/3)
	for i := range pts {
		pts[i] = Keypoint{X: flat[3*i], Y: flat[3*i+1], Z: flat[3*i+2]}
	}
	return Frame{points: pts}, nil
}

// IsZero reports whether the frame is absent.
func (f Frame) IsZero() bool { return len(f.points) == 0 }

// Len returns the number of keypoints.
func (f Frame) Len() int { return len(f.points) }

// At returns keypoint i. It panics on an out-of-range index like a slice would.
func (f Frame) At(i int) Keypoint { return f.points[i] }

// Points returns a copy of the keypoints.
func (f Frame) Points() []Keypoint {
	cp := make([]Keypoint, len(f.points))
	copy(cp, f.points)
	return cp
}

// Flat returns the frame in detector wire format.
func (f Frame) Flat() []float64 {
	out := make([]float64, 0, 3*len(f.points))
	for _, p := range f.points {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

// HasTorso reports whether the frame carries the shoulder and hip landmarks.
func (f Frame) HasTorso() bool {
	return len(f.points) > RightHip
}

// IsFinite reports whether every X/Y coordinate is a finite number.
func (f Frame) IsFinite() bool {
	for _, p := range f.points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// Truncate returns the leading n keypoints. n >= Len returns f unchanged.
func (f Frame) Truncate(n int) Frame {
	if n >= len(f.points) {
		return f
	}
	if n <= 0 {
		return Frame{}
	}
	return Frame{points: f.points[:n:n]}
}

// MarshalJSON encodes the frame as a flat coordinate list, the format used
// by the detector and by stored references.
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Flat())
}

// UnmarshalJSON decodes a flat coordinate list. An empty list decodes to the
// zero (absent) frame.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if len(flat) == 0 {
		*f = Frame{}
		return nil
	}
	fr, err := FromFlat(flat)
	if err != nil {
		return err
	}
	*f = fr
	return nil
}

// Mean returns the element-wise arithmetic mean of frames. Absent frames are
// skipped. If the frames disagree on length the newest frame is returned
// unaveraged. ok is false when no frame is present.
func Mean(frames []Frame) (Frame, bool) {
	var present []Frame
	for _, fr := range frames {
		if !fr.IsZero() {
			present = append(present, fr)
		}
	}
	if len(present) == 0 {
		return Frame{}, false
	}
	newest := present[len(present)-1]
	n := newest.Len()
	for _, fr := range present {
		if fr.Len() != n {
			return newest, true
		}
	}

	sum := make([]float64, 3*n)
	for _, fr := range present {
		floats.Add(sum, fr.Flat())
	}
	floats.Scale(1/float64(len(present)), sum)
	mean, _ := FromFlat(sum)
	return mean, true
}
