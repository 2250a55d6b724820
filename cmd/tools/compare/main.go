// Command compare scores a recorded live sequence against a reference
// sequence, offline or through a running posture server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/verdict"
)

// Config holds the command line options.
type Config struct {
	LivePath      string
	ReferencePath string
	Tolerance     float64
	Server        string
	Timeout       time.Duration
	JSON          bool
}

type compareRequest struct {
	Live      []pose.Frame `json:"live"`
	Reference []pose.Frame `json:"reference"`
	Tolerance *float64     `json:"tolerance,omitempty"`
}

func main() {
	cfg := parseFlags()

	if cfg.LivePath == "" || cfg.ReferencePath == "" {
		log.Fatal("-live and -reference are required")
	}

	res, err := run(context.Background(), cfg, nil)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}
	if err := printResult(os.Stdout, res, cfg.JSON); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
	if !res.Verdict.Passed() {
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.LivePath, "live", "", "Sequence JSON recorded from the live session")
	flag.StringVar(&cfg.ReferencePath, "reference", "", "Reference sequence JSON")
	flag.Float64Var(&cfg.Tolerance, "tolerance", verdict.DefaultTolerance, "Tolerance multiplier (0.3 to 3)")
	flag.StringVar(&cfg.Server, "server", "", "Compare through a posture server at this base URL instead of locally")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Request timeout when -server is set")
	flag.BoolVar(&cfg.JSON, "json", false, "Print the result as JSON")

	flag.Parse()
	return cfg
}

func loadSequence(path string) (pose.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pose.Sequence{}, err
	}
	var seq pose.Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return pose.Sequence{}, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// run compares the two files. A nil client selects http.DefaultClient when
// a server is configured.
func run(ctx context.Context, cfg Config, client httputil.HTTPClient) (verdict.Result, error) {
	tol, ok := verdict.ClampTolerance(cfg.Tolerance)
	if !ok {
		return verdict.Result{}, fmt.Errorf("invalid tolerance %v", cfg.Tolerance)
	}
	live, err := loadSequence(cfg.LivePath)
	if err != nil {
		return verdict.Result{}, err
	}
	ref, err := loadSequence(cfg.ReferencePath)
	if err != nil {
		return verdict.Result{}, err
	}

	if cfg.Server == "" {
		return session.Compare(live.Frames(), ref.Frames(), tol), nil
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	var res verdict.Result
	req := compareRequest{Live: live.Frames(), Reference: ref.Frames(), Tolerance: &tol}
	if err := httputil.NewJSONClient(client, cfg.Server).PostJSON(ctx, "/api/compare", req, &res); err != nil {
		return verdict.Result{}, err
	}
	return res, nil
}

func printResult(w io.Writer, res verdict.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "Verdict:    %s\n", res.Verdict)
	fmt.Fprintf(w, "Reason:     %s\n", res.Reason)
	fmt.Fprintf(w, "Method:     %s\n", res.Method)
	if res.Metrics.AvgDistance != nil {
		fmt.Fprintf(w, "Avg dist:   %.4f\n", *res.Metrics.AvgDistance)
	}
	if res.Metrics.MaxDistance != nil {
		fmt.Fprintf(w, "Max dist:   %.4f\n", *res.Metrics.MaxDistance)
	}
	if res.Confidence != nil {
		fmt.Fprintf(w, "Confidence: %.2f\n", *res.Confidence)
	}
	return nil
}
