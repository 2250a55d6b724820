package verdict

import (
	"math"

	"github.com/banshee-data/posture.report/internal/pose"
)

// Heuristic limits on pelvis-normalised keypoints.
const (
	CurvatureMinTiltY = 0.03
	CurvatureMinTiltX = 0.05

	NeutralMaxTiltY = 0.05
	NeutralMaxTiltX = 0.04

	SymmetryMaxShoulderDiff = 0.02
	SymmetryMaxHipDiff      = 0.02

	BoundedMaxTiltY = 0.08
	BoundedMaxTiltX = 0.06
)

// Trunk holds the trunk measurements the heuristics decide on.
type Trunk struct {
	TiltY        float64 `json:"tilt_y"`
	TiltX        float64 `json:"tilt_x"`
	ShoulderDiff float64 `json:"shoulder_diff"`
	HipDiff      float64 `json:"hip_diff"`
}

// MeasureTrunk computes trunk tilt and left/right level differences on the
// pelvis-normalised frame. ok is false if the frame lacks torso landmarks
// or the measurements are not finite.
func MeasureTrunk(f pose.Frame) (Trunk, bool) {
	if !f.HasTorso() {
		return Trunk{}, false
	}
	n := pose.NormalizeByPelvis(f)
	sx, sy := pose.ShoulderCenter(n)
	hx, hy := pose.HipCenter(n)
	tr := Trunk{
		TiltY:        math.Abs(hy - sy),
		TiltX:        math.Abs(hx - sx),
		ShoulderDiff: math.Abs(n.At(pose.LeftShoulder).Y - n.At(pose.RightShoulder).Y),
		HipDiff:      math.Abs(n.At(pose.LeftHip).Y - n.At(pose.RightHip).Y),
	}
	for _, v := range []float64{tr.TiltY, tr.TiltX, tr.ShoulderDiff, tr.HipDiff} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Trunk{}, false
		}
	}
	return tr, true
}

// check returns whether tr satisfies c, plus the pass and fail reasons.
func (c Condition) check(tr Trunk) (bool, string, string) {
	switch c {
	case CurvatureRequired:
		return tr.TiltY > CurvatureMinTiltY || tr.TiltX > CurvatureMinTiltX,
			"spinal curvature detected as expected",
			"not enough curvature; increase spinal flexion"
	case NeutralAlignment:
		return tr.TiltY < NeutralMaxTiltY && tr.TiltX < NeutralMaxTiltX,
			"trunk alignment is optimal",
			"misaligned; stack shoulders directly over hips"
	case Symmetry:
		return tr.ShoulderDiff < SymmetryMaxShoulderDiff && tr.HipDiff < SymmetryMaxHipDiff,
			"posture is symmetric",
			"lateral lean detected; level shoulders and pelvis"
	case BoundedNeutral:
		return tr.TiltY < BoundedMaxTiltY && tr.TiltX < BoundedMaxTiltX,
			"neutral position held safely",
			"risky position; keep the back neutral and supported"
	default:
		return true, ReasonWithinParameters, ""
	}
}
