package session

import (
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/verdict"
)

// Source identifies which input path produced a feedback event.
type Source string

const (
	SourceStream   Source = "stream"
	SourceEvaluate Source = "evaluate"
)

// Feedback is one evaluated live frame, as emitted to subscribers and
// returned to request handlers.
type Feedback struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
	Posture   string    `json:"posture"`

	verdict.Result

	IsGood          bool                `json:"is_good"`
	PoseSize        *float64            `json:"pose_size"`
	DistanceStatus  pose.DistanceStatus `json:"distance_status,omitempty"`
	Tolerance       float64             `json:"tolerance"`
	ReferenceIndex  int                 `json:"reference_index"`
	ReferenceFrames int                 `json:"reference_frames"`
	LiveFrames      int                 `json:"live_frames"`
}
