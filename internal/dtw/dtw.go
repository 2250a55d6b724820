package dtw

import (
	"math"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/pose"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FrameDistance is the per-pair cost. A returned error, or a NaN cost, is
// recorded as +Inf in the distance matrix.
type FrameDistance func(a, b pose.Frame) (float64, error)

// DefaultFrameDistance is the mean post-alignment residual between frames.
var DefaultFrameDistance FrameDistance = align.FrameDistance

// Coord is one matched (live, reference) index pair.
type Coord struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Result summarises the optimal warping path.
type Result struct {
	// AvgDistance and MaxDistance are nil when no comparison was possible.
	AvgDistance *float64
	MaxDistance *float64
	PathLen     int
	TotalCost   float64
	Path        []Coord
}

// Comparable reports whether the match produced distances.
func (r Result) Comparable() bool {
	return r.AvgDistance != nil && r.MaxDistance != nil
}

// Match runs DTW between a and b. Empty input yields a Result with nil
// distances and +Inf cost rather than an error. dist nil selects
// DefaultFrameDistance.
func Match(a, b []pose.Frame, dist FrameDistance) Result {
	na, nb := len(a), len(b)
	if na == 0 || nb == 0 {
		return Result{TotalCost: math.Inf(1)}
	}
	if dist == nil {
		dist = DefaultFrameDistance
	}

	inf := math.Inf(1)

	fd := make([][]float64, na)
	for i := range fd {
		fd[i] = make([]float64, nb)
		for j := range fd[i] {
			d, err := dist(a[i], b[j])
			if err != nil || math.IsNaN(d) {
				d = inf
			}
			fd[i][j] = d
		}
	}

	D := make([][]float64, na+1)
	for i := range D {
		D[i] = make([]float64, nb+1)
		for j := range D[i] {
			D[i][j] = inf
		}
	}
	D[0][0] = 0

	for i := 1; i <= na; i++ {
		for j := 1; j <= nb; j++ {
			D[i][j] = fd[i-1][j-1] + min(D[i-1][j-1], D[i-1][j], D[i][j-1])
		}
	}

	path := backtrack(D, na, nb)

	along := make([]float64, len(path))
	for k, c := range path {
		along[k] = fd[c.I][c.J]
	}
	avg := stat.Mean(along, nil)
	maxD := floats.Max(along)

	return Result{
		AvgDistance: &avg,
		MaxDistance: &maxD,
		PathLen:     len(path),
		TotalCost:   D[na][nb],
		Path:        path,
	}
}

// backtrack walks from (na, nb) towards the origin. On equal cost the
// diagonal wins, then up, then left.
func backtrack(D [][]float64, na, nb int) []Coord {
	path := make([]Coord, 0, na+nb)
	i, j := na, nb
	for i > 0 && j > 0 {
		path = append(path, Coord{I: i - 1, J: j - 1})
		diag, up, left := D[i-1][j-1], D[i-1][j], D[i][j-1]
		switch {
		case diag <= up && diag <= left:
			i, j = i-1, j-1
		case up <= left:
			i--
		default:
			j--
		}
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}
