package pose

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptySequence indicates a reference with no frames.
var ErrEmptySequence = errors.New("pose: sequence has no frames")

// DefaultSamplingRate is used when a sequence arrives without a usable rate.
const DefaultSamplingRate = 1

// Sequence is an ordered list of frames sampled at a nominal rate (frames per
// second). Insertion order is temporal order. Sequences are read-only once
// built; the frame slice is never handed out for mutation.
type Sequence struct {
	frames []Frame
	rate   int
}

// NewSequence copies frames into a Sequence. Absent frames are dropped so a
// sequence only ever holds fully populated frames. rate is floored at 1.
func NewSequence(frames []Frame, rate int) (Sequence, error) {
	kept := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if !f.IsZero() {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return Sequence{}, ErrEmptySequence
	}
	if rate < 1 {
		rate = DefaultSamplingRate
	}
	return Sequence{frames: kept, rate: rate}, nil
}

// Len returns the number of frames.
func (s Sequence) Len() int { return len(s.frames) }

// Rate returns the nominal sampling rate in frames per second.
func (s Sequence) Rate() int { return s.rate }

// IsZero reports whether the sequence is empty.
func (s Sequence) IsZero() bool { return len(s.frames) == 0 }

// Frame returns frame i.
func (s Sequence) Frame(i int) Frame { return s.frames[i] }

// Frames returns a copy of the frame list. Frames themselves are immutable
// and shared.
func (s Sequence) Frames() []Frame {
	cp := make([]Frame, len(s.frames))
	copy(cp, s.frames)
	return cp
}

// Slice returns frames [start, end) as a read-only view. Bounds are clamped.
func (s Sequence) Slice(start, end int) []Frame {
	if start < 0 {
		start = 0
	}
	if end > len(s.frames) {
		end = len(s.frames)
	}
	if start >= end {
		return nil
	}
	return s.frames[start:end:end]
}

// ClampIndex clamps idx to [0, Len-1]. An empty sequence returns 0.
func (s Sequence) ClampIndex(idx int) int {
	if idx < 0 || len(s.frames) == 0 {
		return 0
	}
	if idx >= len(s.frames) {
		return len(s.frames) - 1
	}
	return idx
}

type sequenceJSON struct {
	Frames []Frame `json:"landmarks_sequence"`
	Rate   int     `json:"ref_fps"`
}

// MarshalJSON encodes the sequence in the reference-ingestion wire format.
func (s Sequence) MarshalJSON() ([]byte, error) {
	return json.Marshal(sequenceJSON{Frames: s.frames, Rate: s.rate})
}

// UnmarshalJSON decodes the reference-ingestion wire format.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	var raw sequenceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	seq, err := NewSequence(raw.Frames, raw.Rate)
	if err != nil {
		return fmt.Errorf("decode sequence: %w", err)
	}
	*s = seq
	return nil
}
