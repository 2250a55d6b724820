// Package session owns the mutable state of one comparison session: the
// tolerance factor, the reference sequence with its playback index, and the
// two smoothing buffers for streamed and single-shot input. Every piece of
// state has its own lock, and replacing the reference is atomic with respect
// to readers.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/dtw"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/timeutil"
	"github.com/banshee-data/posture.report/internal/verdict"
	"github.com/google/uuid"
)

// ErrNoDetector is returned by the image entry points when no Detector is
// configured.
var ErrNoDetector = errors.New("session: no pose detector configured")

var logf = monitoring.Tagged("Session")

// Detector extracts keypoints from an encoded image. ok is false when no
// person was found.
type Detector interface {
	Detect(ctx context.Context, image []byte) (frame pose.Frame, ok bool, err error)
}

// Classifier labels a frame with the posture condition it shows. ok is false
// when the posture is not recognised.
type Classifier interface {
	Classify(f pose.Frame) (label string, ok bool)
}

// Publisher receives every feedback event the session produces.
type Publisher interface {
	Publish(fb Feedback)
}

// Options configures a Session.
type Options struct {
	Tolerance       float64
	SmoothingWindow int
	Window          dtw.WindowPolicy
	Distance        dtw.FrameDistance
	Evaluator       *verdict.Evaluator
	Clock           timeutil.Clock
	Detector        Detector
	Classifier      Classifier
	Publisher       Publisher
}

// DefaultOptions returns the calibrated defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance:       verdict.DefaultTolerance,
		SmoothingWindow: pose.DefaultSmoothingWindow,
		Window:          dtw.DefaultWindowPolicy(),
	}
}

// OptionsFromConfig maps tuning configuration onto Options.
func OptionsFromConfig(cfg *config.TuningConfig) Options {
	opts := DefaultOptions()
	opts.Tolerance = cfg.GetTolerance()
	opts.SmoothingWindow = cfg.GetSmoothingWindow()
	opts.Window = dtw.WindowPolicy{
		MinWidth:   cfg.GetDTWMinWindow(),
		Multiplier: cfg.GetDTWWindowMultiplier(),
	}
	return opts
}

// Session is a single comparison session. It is safe for concurrent use by
// the streaming loop and by request handlers.
type Session struct {
	id    string
	opts  Options
	eval  *verdict.Evaluator
	clock timeutil.Clock
	seq   atomic.Uint64

	tolMu     sync.Mutex
	tolerance float64

	refMu sync.RWMutex
	ref   referenceState

	stream *pose.SmoothingBuffer
	single *pose.SmoothingBuffer
}

// referenceState is replaced as a unit under refMu.
type referenceState struct {
	seq      pose.Sequence
	rate     int
	index    int
	id       string
	name     string
	loadedAt time.Time
}

// New creates a session.
func New(opts Options) *Session {
	if opts.Evaluator == nil {
		opts.Evaluator = verdict.NewEvaluator()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Distance == nil {
		opts.Distance = dtw.DefaultFrameDistance
	}
	tol, ok := verdict.ClampTolerance(opts.Tolerance)
	if !ok {
		tol = verdict.DefaultTolerance
	}
	return &Session{
		id:        uuid.New().String(),
		opts:      opts,
		eval:      opts.Evaluator,
		clock:     opts.Clock,
		tolerance: tol,
		ref:       referenceState{rate: pose.DefaultSamplingRate},
		stream:    pose.NewSmoothingBuffer(opts.SmoothingWindow),
		single:    pose.NewSmoothingBuffer(opts.SmoothingWindow),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Tolerance returns the current tolerance factor.
func (s *Session) Tolerance() float64 {
	s.tolMu.Lock()
	defer s.tolMu.Unlock()
	return s.tolerance
}

// SetTolerance clamps v into [0.3, 3.0] and stores it. Non-positive or NaN
// values are rejected and the previous value is kept; ok reports which
// happened. The returned value is the tolerance now in effect.
func (s *Session) SetTolerance(v float64) (float64, bool) {
	clamped, ok := verdict.ClampTolerance(v)
	s.tolMu.Lock()
	defer s.tolMu.Unlock()
	if !ok {
		return s.tolerance, false
	}
	s.tolerance = clamped
	logf("tolerance set to %.2f", clamped)
	return clamped, true
}

// SetReference replaces the reference with frames sampled at rate frames per
// second and resets the playback index to 0. Absent frames are dropped; an
// empty result is an error and leaves the current reference untouched.
func (s *Session) SetReference(frames []pose.Frame, rate int) error {
	seq, err := pose.NewSequence(frames, rate)
	if err != nil {
		return fmt.Errorf("set reference: %w", err)
	}
	s.LoadReference(seq, "", "")
	return nil
}

// LoadReference installs seq as the reference, tagged with a library id and
// name, and resets the playback index to 0.
func (s *Session) LoadReference(seq pose.Sequence, id, name string) {
	next := referenceState{
		seq:      seq,
		rate:     seq.Rate(),
		id:       id,
		name:     name,
		loadedAt: s.clock.Now(),
	}
	s.refMu.Lock()
	s.ref = next
	s.refMu.Unlock()
	logf("reference loaded: %d frames at %d fps (id=%q)", seq.Len(), seq.Rate(), id)
}

// ClearReference removes the reference. Later evaluations use the condition
// heuristics.
func (s *Session) ClearReference() {
	s.refMu.Lock()
	s.ref = referenceState{rate: s.ref.rate}
	s.refMu.Unlock()
	logf("reference cleared")
}

// SyncIndex sets the playback index from an external clock reading in
// seconds: max(0, round(seconds * rate)), rounding half to even. The stored
// index may exceed the reference length; reads clamp it.
func (s *Session) SyncIndex(seconds float64) int {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	idx := 0
	if v := math.RoundToEven(seconds * float64(s.ref.rate)); v > 0 && !math.IsNaN(v) {
		idx = int(math.Min(v, math.MaxInt32))
	}
	s.ref.index = idx
	return idx
}

// ReferenceInfo describes the loaded reference.
type ReferenceInfo struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Frames   int       `json:"frames"`
	Rate     int       `json:"ref_fps"`
	Index    int       `json:"index"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Reference returns a consistent view of the reference. ok is false when no
// reference is loaded. Index is clamped into the sequence.
func (s *Session) Reference() (ReferenceInfo, bool) {
	ref := s.snapshot()
	if ref.seq.IsZero() {
		return ReferenceInfo{Rate: ref.rate, Index: ref.index}, false
	}
	return ReferenceInfo{
		ID:       ref.id,
		Name:     ref.name,
		Frames:   ref.seq.Len(),
		Rate:     ref.rate,
		Index:    ref.seq.ClampIndex(ref.index),
		LoadedAt: ref.loadedAt,
	}, true
}

// ReferenceSequence returns the loaded reference sequence.
func (s *Session) ReferenceSequence() (pose.Sequence, bool) {
	ref := s.snapshot()
	return ref.seq, !ref.seq.IsZero()
}

func (s *Session) snapshot() referenceState {
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	return s.ref
}

// State summarises the session for diagnostics.
type State struct {
	ID           string        `json:"id"`
	Tolerance    float64       `json:"tolerance"`
	HasReference bool          `json:"has_reference"`
	Reference    ReferenceInfo `json:"reference"`
	StreamFrames int           `json:"stream_buffered"`
	SingleFrames int           `json:"single_buffered"`
	Events       uint64        `json:"events"`
}

// State returns a diagnostic snapshot.
func (s *Session) State() State {
	info, ok := s.Reference()
	return State{
		ID:           s.id,
		Tolerance:    s.Tolerance(),
		HasReference: ok,
		Reference:    info,
		StreamFrames: s.stream.Len(),
		SingleFrames: s.single.Len(),
		Events:       s.seq.Load(),
	}
}

// CurrentAlignment aligns the smoothed live pose onto the reference frame at
// the playback index. The stream buffer is preferred; the single-shot buffer
// is used when the stream is empty. ok is false without a reference or live
// frames.
func (s *Session) CurrentAlignment() (align.Result, bool) {
	ref := s.snapshot()
	if ref.seq.IsZero() {
		return align.Result{}, false
	}
	live, ok := s.stream.Mean()
	if !ok {
		live, ok = s.single.Mean()
	}
	if !ok {
		return align.Result{}, false
	}
	r := align.Align(live, ref.seq.Frame(ref.seq.ClampIndex(ref.index)))
	return r, r.Status != align.Unavailable
}

// ResetBuffers drops every buffered live frame.
func (s *Session) ResetBuffers() {
	s.stream.Reset()
	s.single.Reset()
}
