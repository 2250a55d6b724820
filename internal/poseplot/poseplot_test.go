package poseplot

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/testutil"
)

func TestSkeleton(t *testing.T) {
	r := align.Align(testutil.ShiftedPose(0.1, 0), testutil.NeutralPose())

	var buf bytes.Buffer
	if err := Skeleton(&buf, "live vs reference", r); err != nil {
		t.Fatalf("Skeleton: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() == 0 {
		t.Error("empty image")
	}
}

func TestSkeletonEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Skeleton(&buf, "x", align.Result{}); err != ErrNothingToPlot {
		t.Errorf("err = %v, want ErrNothingToPlot", err)
	}
}

func TestHistogram(t *testing.T) {
	var buf bytes.Buffer
	if err := Histogram(&buf, "consecutive", "distance", []float64{0.01, 0.02, 0.02, 0.05}, 0); err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}

	if err := Histogram(&buf, "x", "y", nil, 5); err != ErrNothingToPlot {
		t.Errorf("err = %v, want ErrNothingToPlot", err)
	}
}
