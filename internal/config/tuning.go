package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Defaults used when a field is omitted from the JSON file.
const (
	DefaultTolerance           = 1.0
	DefaultSmoothingWindow     = 3
	DefaultDTWMinWindow        = 4
	DefaultDTWWindowMultiplier = 3
	DefaultReferenceSourceFPS  = 30.0
	DefaultReferenceTargetFPS  = 2.0
	DefaultMaxReferenceSamples = 300
	DefaultSignalHistory       = 120
	DefaultFeedbackBuffer      = 16
	DefaultMaxStreamClients    = 8
	DefaultStatsInterval       = 30 * time.Second
	DefaultWSWriteTimeout      = 10 * time.Second
)

// Tolerance bounds accepted by Validate.
const (
	minTolerance = 0.3
	maxTolerance = 3.0
)

// TuningConfig holds the comparison and transport tuning. The same JSON
// schema is used for the defaults file and for per-deployment overrides.
type TuningConfig struct {
	// Comparison
	Tolerance           *float64 `json:"tolerance,omitempty"`
	SmoothingWindow     *int     `json:"smoothing_window,omitempty"`
	DTWMinWindow        *int     `json:"dtw_min_window,omitempty"`
	DTWWindowMultiplier *int     `json:"dtw_window_multiplier,omitempty"`

	// Reference sampling
	ReferenceSourceFPS  *float64 `json:"reference_source_fps,omitempty"`
	ReferenceTargetFPS  *float64 `json:"reference_target_fps,omitempty"`
	MaxReferenceSamples *int     `json:"max_reference_samples,omitempty"`

	// Feedback fan-out
	SignalHistory    *int    `json:"signal_history,omitempty"`
	FeedbackBuffer   *int    `json:"feedback_buffer,omitempty"`
	MaxStreamClients *int    `json:"max_stream_clients,omitempty"`
	StatsInterval    *string `json:"stats_interval,omitempty"`   // duration string like "30s"
	WSWriteTimeout   *string `json:"ws_write_timeout,omitempty"` // duration string like "10s"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with every field unset, so every
// Get* accessor returns its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// compiled-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Tolerance:           ptrFloat64(DefaultTolerance),
		SmoothingWindow:     ptrInt(DefaultSmoothingWindow),
		DTWMinWindow:        ptrInt(DefaultDTWMinWindow),
		DTWWindowMultiplier: ptrInt(DefaultDTWWindowMultiplier),
		ReferenceSourceFPS:  ptrFloat64(DefaultReferenceSourceFPS),
		ReferenceTargetFPS:  ptrFloat64(DefaultReferenceTargetFPS),
		MaxReferenceSamples: ptrInt(DefaultMaxReferenceSamples),
		SignalHistory:       ptrInt(DefaultSignalHistory),
		FeedbackBuffer:      ptrInt(DefaultFeedbackBuffer),
		MaxStreamClients:    ptrInt(DefaultMaxStreamClients),
		StatsInterval:       ptrString(DefaultStatsInterval.String()),
		WSWriteTimeout:      ptrString(DefaultWSWriteTimeout.String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file with a .json
// extension no larger than 1MB. Omitted fields keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. It panics if the
// file cannot be loaded and is intended for tests and tools.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/calibrate/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that every set field is in range.
func (c *TuningConfig) Validate() error {
	if c.Tolerance != nil {
		if v := *c.Tolerance; !(v >= minTolerance && v <= maxTolerance) {
			return fmt.Errorf("tolerance must be between %.1f and %.1f, got %f", minTolerance, maxTolerance, v)
		}
	}
	positive := []struct {
		name string
		v    *int
	}{
		{"smoothing_window", c.SmoothingWindow},
		{"dtw_min_window", c.DTWMinWindow},
		{"dtw_window_multiplier", c.DTWWindowMultiplier},
		{"max_reference_samples", c.MaxReferenceSamples},
		{"signal_history", c.SignalHistory},
		{"feedback_buffer", c.FeedbackBuffer},
		{"max_stream_clients", c.MaxStreamClients},
	}
	for _, p := range positive {
		if p.v != nil && *p.v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", p.name, *p.v)
		}
	}
	if c.ReferenceSourceFPS != nil && *c.ReferenceSourceFPS <= 0 {
		return fmt.Errorf("reference_source_fps must be positive, got %f", *c.ReferenceSourceFPS)
	}
	if c.ReferenceTargetFPS != nil && *c.ReferenceTargetFPS <= 0 {
		return fmt.Errorf("reference_target_fps must be positive, got %f", *c.ReferenceTargetFPS)
	}
	for name, s := range map[string]*string{"stats_interval": c.StatsInterval, "ws_write_timeout": c.WSWriteTimeout} {
		if s == nil || *s == "" {
			continue
		}
		if d, err := time.ParseDuration(*s); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
		} else if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *s)
		}
	}
	return nil
}

// GetTolerance returns the tolerance factor or the default.
func (c *TuningConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return DefaultTolerance
	}
	return *c.Tolerance
}

// GetSmoothingWindow returns the smoothing buffer capacity or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return DefaultSmoothingWindow
	}
	return *c.SmoothingWindow
}

// GetDTWMinWindow returns the minimum reference window width or the default.
func (c *TuningConfig) GetDTWMinWindow() int {
	if c.DTWMinWindow == nil {
		return DefaultDTWMinWindow
	}
	return *c.DTWMinWindow
}

// GetDTWWindowMultiplier returns the window width per live frame or the default.
func (c *TuningConfig) GetDTWWindowMultiplier() int {
	if c.DTWWindowMultiplier == nil {
		return DefaultDTWWindowMultiplier
	}
	return *c.DTWWindowMultiplier
}

// GetReferenceSourceFPS returns the assumed reference video frame rate or the default.
func (c *TuningConfig) GetReferenceSourceFPS() float64 {
	if c.ReferenceSourceFPS == nil {
		return DefaultReferenceSourceFPS
	}
	return *c.ReferenceSourceFPS
}

// GetReferenceTargetFPS returns the reference sampling rate or the default.
func (c *TuningConfig) GetReferenceTargetFPS() float64 {
	if c.ReferenceTargetFPS == nil {
		return DefaultReferenceTargetFPS
	}
	return *c.ReferenceTargetFPS
}

// GetMaxReferenceSamples returns the reference sample cap or the default.
func (c *TuningConfig) GetMaxReferenceSamples() int {
	if c.MaxReferenceSamples == nil {
		return DefaultMaxReferenceSamples
	}
	return *c.MaxReferenceSamples
}

// GetSignalHistory returns how many recent feedback events are retained.
func (c *TuningConfig) GetSignalHistory() int {
	if c.SignalHistory == nil {
		return DefaultSignalHistory
	}
	return *c.SignalHistory
}

// GetFeedbackBuffer returns the per-subscriber event buffer or the default.
func (c *TuningConfig) GetFeedbackBuffer() int {
	if c.FeedbackBuffer == nil {
		return DefaultFeedbackBuffer
	}
	return *c.FeedbackBuffer
}

// GetMaxStreamClients returns the subscriber cap or the default.
func (c *TuningConfig) GetMaxStreamClients() int {
	if c.MaxStreamClients == nil {
		return DefaultMaxStreamClients
	}
	return *c.MaxStreamClients
}

// GetStatsInterval parses StatsInterval, falling back to the default.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, DefaultStatsInterval)
}

// GetWSWriteTimeout parses WSWriteTimeout, falling back to the default.
func (c *TuningConfig) GetWSWriteTimeout() time.Duration {
	return parseDurationOr(c.WSWriteTimeout, DefaultWSWriteTimeout)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
