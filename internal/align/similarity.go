// Package align estimates the similarity transform (scale, rotation,
// translation) that best maps one 2D keypoint set onto another, and reports
// the per-keypoint residuals left after alignment.
package align

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// varianceEpsilon guards the scale estimate against a collapsed source set.
const varianceEpsilon = 1e-8

var (
	// ErrShapeMismatch indicates point sets that are empty or of unequal length.
	ErrShapeMismatch = errors.New("align: point sets must be non-empty and equal length")

	// ErrSVDFailed indicates the covariance factorisation did not converge.
	ErrSVDFailed = errors.New("align: covariance SVD failed")

	// ErrNonFinite indicates NaN or Inf in the inputs or the estimate.
	ErrNonFinite = errors.New("align: non-finite value in estimate")
)

// Point is an (x, y) pair.
type Point [2]float64

// Transform is a 2D similarity transform p' = Scale * Rotation * p + Translation.
type Transform struct {
	Scale       float64
	Rotation    [2][2]float64
	Translation Point
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{Scale: 1, Rotation: [2][2]float64{{1, 0}, {0, 1}}}
}

// Apply maps p through the transform.
func (t Transform) Apply(p Point) Point {
	r := t.Rotation
	return Point{
		t.Scale*(r[0][0]*p[0]+r[0][1]*p[1]) + t.Translation[0],
		t.Scale*(r[1][0]*p[0]+r[1][1]*p[1]) + t.Translation[1],
	}
}

// Angle returns the rotation angle in radians.
func (t Transform) Angle() float64 {
	return math.Atan2(t.Rotation[1][0], t.Rotation[0][0])
}

func (t Transform) finite() bool {
	vals := []float64{
		t.Scale,
		t.Rotation[0][0], t.Rotation[0][1], t.Rotation[1][0], t.Rotation[1][1],
		t.Translation[0], t.Translation[1],
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Similarity estimates the transform mapping src onto dst in the least
// squares sense using Umeyama's closed form:
//
//	C   = (1/n) * dst_c^T * src_c
//	C   = U * D * V^T
//	S   = diag(1, det(U)*det(V) < 0 ? -1 : 1)
//	R   = U * S * V^T
//	s   = trace(D*S) / var(src_c)      (1 when var <= 1e-8)
//	t   = mu_dst - s * R * mu_src
func Similarity(src, dst []Point) (Transform, error) {
	n := len(src)
	if n == 0 || n != len(dst) {
		return Transform{}, fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, len(src), len(dst))
	}

	var muSrc, muDst Point
	for i := 0; i < n; i++ {
		muSrc[0] += src[i][0]
		muSrc[1] += src[i][1]
		muDst[0] += dst[i][0]
		muDst[1] += dst[i][1]
	}
	fn := float64(n)
	muSrc[0] /= fn
	muSrc[1] /= fn
	muDst[0] /= fn
	muDst[1] /= fn

	srcC := mat.NewDense(n, 2, nil)
	dstC := mat.NewDense(n, 2, nil)
	var varSrc float64
	for i := 0; i < n; i++ {
		sx, sy := src[i][0]-muSrc[0], src[i][1]-muSrc[1]
		srcC.Set(i, 0, sx)
		srcC.Set(i, 1, sy)
		dstC.Set(i, 0, dst[i][0]-muDst[0])
		dstC.Set(i, 1, dst[i][1]-muDst[1])
		varSrc += sx*sx + sy*sy
	}
	varSrc /= fn
	if math.IsNaN(varSrc) || math.IsInf(varSrc, 0) {
		return Transform{}, ErrNonFinite
	}

	var cov mat.Dense
	cov.Mul(dstC.T(), srcC)
	cov.Scale(1/fn, &cov)

	var svd mat.SVD
	if ok := svd.Factorize(&cov, mat.SVDFull); !ok {
		return Transform{}, ErrSVDFailed
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	d := svd.Values(nil)

	// Reflection fix-up: force a proper rotation.
	s := mat.NewDiagDense(2, []float64{1, 1})
	if mat.Det(&u)*mat.Det(&v) < 0 {
		s.SetDiag(1, -1)
	}

	var rot mat.Dense
	rot.Product(&u, s, v.T())

	scale := 1.0
	if varSrc > varianceEpsilon {
		scale = (d[0]*s.At(0, 0) + d[1]*s.At(1, 1)) / varSrc
	}

	t := Transform{
		Scale: scale,
		Rotation: [2][2]float64{
			{rot.At(0, 0), rot.At(0, 1)},
			{rot.At(1, 0), rot.At(1, 1)},
		},
	}
	rotMu := Transform{Scale: scale, Rotation: t.Rotation}.Apply(muSrc)
	t.Translation = Point{muDst[0] - rotMu[0], muDst[1] - rotMu[1]}

	if !t.finite() {
		return Transform{}, ErrNonFinite
	}
	return t, nil
}
