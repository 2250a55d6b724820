// Command calibrate measures the frame-to-frame variation of a reference
// sequence and suggests average-distance thresholds for it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/posture.report/internal/calibrate"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/poseplot"
	"github.com/banshee-data/posture.report/internal/security"
)

// Config holds the command line options.
type Config struct {
	InputPath   string
	DBPath      string
	ReferenceID string
	PlotPath    string
	Bins        int
	JSON        bool
}

func main() {
	cfg := parseFlags()

	frames, err := loadFrames(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to load reference: %v", err)
	}
	report, err := calibrate.Calibrate(frames)
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}

	if err := printReport(os.Stdout, report, cfg.JSON); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	if cfg.PlotPath != "" {
		if err := writePlot(cfg.PlotPath, report, cfg.Bins); err != nil {
			log.Printf("Warning: failed to write plot: %v", err)
		} else {
			log.Printf("Histogram written to: %s", cfg.PlotPath)
		}
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.InputPath, "input", "", "Reference sequence JSON file")
	flag.StringVar(&cfg.DBPath, "db", "", "Reference library database (with -id)")
	flag.StringVar(&cfg.ReferenceID, "id", "", "Stored reference id to calibrate")
	flag.StringVar(&cfg.PlotPath, "plot", "", "Write a PNG histogram of consecutive distances")
	flag.IntVar(&cfg.Bins, "bins", 20, "Histogram bins")
	flag.BoolVar(&cfg.JSON, "json", false, "Print the report as JSON")

	flag.Parse()
	return cfg
}

// loadFrames reads the reference from a file or from the reference library.
func loadFrames(ctx context.Context, cfg Config) ([]pose.Frame, error) {
	switch {
	case cfg.InputPath != "":
		data, err := os.ReadFile(cfg.InputPath)
		if err != nil {
			return nil, err
		}
		var seq pose.Sequence
		if err := json.Unmarshal(data, &seq); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.InputPath, err)
		}
		return seq.Frames(), nil
	case cfg.DBPath != "" && cfg.ReferenceID != "":
		store, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		ref, err := store.GetReference(ctx, cfg.ReferenceID)
		if err != nil {
			return nil, err
		}
		return ref.Sequence.Frames(), nil
	default:
		return nil, errors.New("either -input or -db with -id is required")
	}
}

func printReport(w io.Writer, r calibrate.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "Frames: %d\n\n", r.Frames)
	printSummary(w, "Consecutive frames", r.Consecutive)
	printSummary(w, fmt.Sprintf("Frames %d apart", calibrate.DistantGap), r.Distant)

	fmt.Fprintln(w, "Recommended average-distance thresholds:")
	fmt.Fprintf(w, "  strict   %.4f  (median x %.1f)\n", r.Recommendation.Strict, calibrate.StrictFactor)
	fmt.Fprintf(w, "  normal   %.4f  (median x %.1f)\n", r.Recommendation.Normal, calibrate.NormalFactor)
	fmt.Fprintf(w, "  relaxed  %.4f  (median x %.1f)\n", r.Recommendation.Relaxed, calibrate.RelaxedFactor)
	return nil
}

func printSummary(w io.Writer, title string, s calibrate.Summary) {
	fmt.Fprintf(w, "%s (%d pairs)\n", title, s.Count)
	if s.Count == 0 {
		fmt.Fprintln(w, "  none")
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "  mean   %.4f\n", s.Mean)
	fmt.Fprintf(w, "  median %.4f\n", s.Median)
	fmt.Fprintf(w, "  min    %.4f\n", s.Min)
	fmt.Fprintf(w, "  max    %.4f\n\n", s.Max)
}

func writePlot(path string, r calibrate.Report, bins int) error {
	if err := security.ValidateExportPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := poseplot.Histogram(f, "Consecutive frame distance", "Mean keypoint distance", r.ConsecutiveDistances, bins); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
