// Package poseplot renders aligned skeletons and distance histograms as PNG
// images for the debug pages and the calibration tool.
package poseplot

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/pose"
)

// ErrNothingToPlot is returned when there are no points or values.
var ErrNothingToPlot = errors.New("poseplot: nothing to plot")

// Image size of rendered plots.
const (
	Width  = 6 * vg.Inch
	Height = 6 * vg.Inch
)

var (
	liveColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	refColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
)

// Bones lists the keypoint pairs drawn as skeleton segments.
var Bones = [][2]int{
	{pose.LeftShoulder, pose.RightShoulder},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftShoulder, pose.LeftHip},
	{pose.RightShoulder, pose.RightHip},
	{11, 13}, {13, 15}, // left arm
	{12, 14}, {14, 16}, // right arm
	{pose.LeftHip, pose.LeftKnee}, {pose.LeftKnee, 27},
	{pose.RightHip, pose.RightKnee}, {pose.RightKnee, 28},
}

// Skeleton draws the aligned live pose over the reference pose of r and
// writes a PNG to w. Image y grows downward, so y is negated.
func Skeleton(w io.Writer, title string, r align.Result) error {
	if len(r.Aligned) == 0 || len(r.Reference) == 0 {
		return ErrNothingToPlot
	}

	p := plot.New()
	p.Title.Text = title
	if r.Status != align.Unavailable {
		p.Title.Text = fmt.Sprintf("%s (%s, mean %.3f)", title, r.Status, meanOrZero(r))
	}
	p.X.Label.Text = "x"
	p.Y.Label.Text = "-y"

	if err := addSkeleton(p, "reference", r.Reference, refColor); err != nil {
		return err
	}
	if err := addSkeleton(p, "live", r.Aligned, liveColor); err != nil {
		return err
	}
	p.Legend.Top = true
	p.Legend.Left = false

	return writePNG(p, w)
}

func meanOrZero(r align.Result) float64 {
	m, ok := r.Mean()
	if !ok {
		return 0
	}
	return m
}

func addSkeleton(p *plot.Plot, name string, pts []align.Point, c color.Color) error {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt[0], Y: -pt[1]}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = c
	sc.GlyphStyle.Radius = vg.Points(2)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)
	p.Legend.Add(name, sc)

	for _, b := range Bones {
		if b[0] >= len(pts) || b[1] >= len(pts) {
			continue
		}
		seg, err := plotter.NewLine(plotter.XYs{xys[b[0]], xys[b[1]]})
		if err != nil {
			return err
		}
		seg.Color = c
		seg.Width = vg.Points(1.5)
		p.Add(seg)
	}
	return nil
}

// Histogram writes a PNG histogram of values to w.
func Histogram(w io.Writer, title, xLabel string, values []float64, bins int) error {
	if len(values) == 0 {
		return ErrNothingToPlot
	}
	if bins < 1 {
		bins = 20
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	h.FillColor = refColor
	p.Add(h)
	return writePNG(p, w)
}

func writePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}
