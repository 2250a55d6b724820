package pose

import "math"

// minTorsoLength guards the pelvis normalisation divisor.
const minTorsoLength = 1e-6

// Distance status thresholds on the raw torso length (normalized image units).
const (
	TooCloseTorsoLength = 0.35
	TooFarTorsoLength   = 0.12

	// minPointsForSize is the smallest frame the size estimate accepts.
	minPointsForSize = 25
)

// DistanceStatus describes how far the subject stands from the camera.
type DistanceStatus string

const (
	DistanceTooClose DistanceStatus = "too_close"
	DistanceTooFar   DistanceStatus = "too_far"
	DistanceOptimal  DistanceStatus = "optimal"
)

// HipCenter returns the midpoint of the hip landmarks.
func HipCenter(f Frame) (x, y float64) {
	lh, rh := f.At(LeftHip), f.At(RightHip)
	return (lh.X + rh.X) / 2, (lh.Y + rh.Y) / 2
}

// ShoulderCenter returns the midpoint of the shoulder landmarks.
func ShoulderCenter(f Frame) (x, y float64) {
	ls, rs := f.At(LeftShoulder), f.At(RightShoulder)
	return (ls.X + rs.X) / 2, (ls.Y + rs.Y) / 2
}

// TorsoLength returns the hip-centre to shoulder-centre distance in XY.
func TorsoLength(f Frame) float64 {
	hx, hy := HipCenter(f)
	sx, sy := ShoulderCenter(f)
	return math.Hypot(sx-hx, sy-hy)
}

// NormalizeByPelvis translates the frame so the hip centre is the origin and
// divides X/Y by the torso length. Frames without torso landmarks are centred
// on their mean instead and left unscaled. A torso length below 1e-6 is
// treated as 1. The result is never an error; NaN input yields NaN output.
func NormalizeByPelvis(f Frame) Frame {
	if f.IsZero() {
		return f
	}

	var cx, cy float64
	scale := 1.0
	if f.HasTorso() {
		cx, cy = HipCenter(f)
		if torso := TorsoLength(f); torso > minTorsoLength {
			scale = torso
		}
	} else {
		for _, p := range f.points {
			cx += p.X
			cy += p.Y
		}
		cx /= float64(f.Len())
		cy /= float64(f.Len())
	}

	out := make([]Keypoint, f.Len())
	for i, p := range f.points {
		out[i] = Keypoint{X: (p.X - cx) / scale, Y: (p.Y - cy) / scale, Z: p.Z}
	}
	return Frame{points: out}
}

// Size estimates how large the subject appears using the raw torso length,
// and classifies it into a DistanceStatus. ok is false for frames too small
// to carry the torso landmarks.
func Size(f Frame) (torso float64, status DistanceStatus, ok bool) {
	if f.Len() < minPointsForSize {
		return 0, "", false
	}
	torso = TorsoLength(f)
	switch {
	case torso > TooCloseTorsoLength:
		status = DistanceTooClose
	case torso < TooFarTorsoLength:
		status = DistanceTooFar
	default:
		status = DistanceOptimal
	}
	return torso, status, true
}
