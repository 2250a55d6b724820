package session

import (
	"context"
	"fmt"

	"github.com/banshee-data/posture.report/internal/align"
	"github.com/banshee-data/posture.report/internal/dtw"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/verdict"
)

// ProcessStreamFrame evaluates one frame from the continuous stream. label
// is the classifier output, empty when the posture was not recognised.
func (s *Session) ProcessStreamFrame(f pose.Frame, label string) Feedback {
	return s.process(SourceStream, s.stream, f, label)
}

// EvaluateFrame evaluates one frame from a discrete request. It uses its own
// smoothing buffer so request cadence never mixes with the stream.
func (s *Session) EvaluateFrame(f pose.Frame, label string) Feedback {
	return s.process(SourceEvaluate, s.single, f, label)
}

// ProcessImage runs the detector and classifier on an encoded image and
// feeds the result into the stream path.
func (s *Session) ProcessImage(ctx context.Context, image []byte) (Feedback, error) {
	f, label, err := s.detect(ctx, image)
	if err != nil {
		return Feedback{}, err
	}
	return s.ProcessStreamFrame(f, label), nil
}

// EvaluateImage runs the detector and classifier on an encoded image and
// feeds the result into the single-shot path.
func (s *Session) EvaluateImage(ctx context.Context, image []byte) (Feedback, error) {
	f, label, err := s.detect(ctx, image)
	if err != nil {
		return Feedback{}, err
	}
	return s.EvaluateFrame(f, label), nil
}

func (s *Session) detect(ctx context.Context, image []byte) (pose.Frame, string, error) {
	if s.opts.Detector == nil {
		return pose.Frame{}, "", ErrNoDetector
	}
	f, ok, err := s.opts.Detector.Detect(ctx, image)
	if err != nil {
		return pose.Frame{}, "", fmt.Errorf("detect pose: %w", err)
	}
	if !ok {
		return pose.Frame{}, "", nil
	}
	var label string
	if s.opts.Classifier != nil {
		if l, ok := s.opts.Classifier.Classify(f); ok {
			label = l
		}
	}
	return f, label, nil
}

func (s *Session) process(src Source, buf *pose.SmoothingBuffer, f pose.Frame, label string) Feedback {
	buf.Push(f)
	frames, smoothed, _ := buf.Snapshot()
	ref := s.snapshot()
	tol := s.Tolerance()

	var res verdict.Result
	switch {
	case f.IsZero():
		res = verdict.Inconclude(verdict.ReasonNoPose)
	case !ref.seq.IsZero() && len(frames) > 1:
		res = s.matchWindow(frames, ref, tol)
	case !ref.seq.IsZero():
		target := ref.seq.Frame(ref.seq.ClampIndex(ref.index))
		res = s.eval.Alignment(align.Align(smoothed, target), tol)
	case label == "":
		res = verdict.Inconclude(verdict.ReasonNotRecognized)
	default:
		res = s.eval.Heuristic(smoothed, verdict.ParseCondition(label))
	}

	fb := Feedback{
		SessionID:  s.id,
		Seq:        s.seq.Add(1),
		Timestamp:  s.clock.Now(),
		Source:     src,
		Posture:    label,
		Result:     res,
		IsGood:     res.Verdict.Passed(),
		Tolerance:  tol,
		LiveFrames: len(frames),
	}
	if !ref.seq.IsZero() {
		fb.ReferenceIndex = ref.seq.ClampIndex(ref.index)
		fb.ReferenceFrames = ref.seq.Len()
	}
	if torso, status, ok := pose.Size(f); ok {
		fb.PoseSize = &torso
		fb.DistanceStatus = status
	}

	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(fb)
	}
	return fb
}

// matchWindow runs DTW of the buffered live frames against the reference
// neighbourhood of the playback index.
func (s *Session) matchWindow(frames []pose.Frame, ref referenceState, tol float64) verdict.Result {
	start, end := s.opts.Window.Bounds(ref.seq.Len(), ref.index, len(frames))
	return s.eval.Match(dtw.Match(frames, ref.seq.Slice(start, end), s.opts.Distance), tol)
}

// Compare evaluates live frames against the loaded reference without
// touching either smoothing buffer. A single live frame is aligned to the
// reference frame at the playback index; several are matched by DTW against
// the window around it.
func (s *Session) Compare(live []pose.Frame) verdict.Result {
	ref := s.snapshot()
	live = present(live)
	switch {
	case len(live) == 0:
		return verdict.Inconclude(verdict.ReasonNoPose)
	case ref.seq.IsZero():
		return verdict.Inconclude(verdict.ReasonNoComparison)
	case len(live) == 1:
		target := ref.seq.Frame(ref.seq.ClampIndex(ref.index))
		return s.eval.Alignment(align.Align(live[0], target), s.Tolerance())
	default:
		return s.matchWindow(live, ref, s.Tolerance())
	}
}

// Compare is the stateless comparison: one live frame against one reference
// frame uses the single-frame thresholds, anything longer is matched by DTW
// over the whole reference with the sequence thresholds.
func Compare(live, ref []pose.Frame, tolerance float64) verdict.Result {
	live, ref = present(live), present(ref)
	e := verdict.NewEvaluator()
	switch {
	case len(live) == 0:
		return verdict.Inconclude(verdict.ReasonNoPose)
	case len(ref) == 0:
		return verdict.Inconclude(verdict.ReasonNoComparison)
	case len(live) == 1 && len(ref) == 1:
		return e.Alignment(align.Align(live[0], ref[0]), tolerance)
	default:
		return e.Match(dtw.Match(live, ref, nil), tolerance)
	}
}

func present(frames []pose.Frame) []pose.Frame {
	out := make([]pose.Frame, 0, len(frames))
	for _, f := range frames {
		if !f.IsZero() {
			out = append(out, f)
		}
	}
	return out
}
