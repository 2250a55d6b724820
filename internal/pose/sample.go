package pose

import "math"

// Reference sampling defaults.
const (
	DefaultSourceFPS       = 30.0
	DefaultTargetFPS       = 2.0
	DefaultMaxSampleFrames = 300
)

// Sample decimates a full-rate frame stream (for example every frame of a
// reference video, absent where nothing was detected) down to targetFPS.
// Every step-th source frame is considered, step = max(1, round(source/target)),
// and absent frames at those positions are skipped without shifting the
// grid. At most maxSamples frames are kept. The returned sequence rate is
// max(1, int(targetFPS)).
func Sample(frames []Frame, sourceFPS, targetFPS float64, maxSamples int) (Sequence, error) {
	if sourceFPS <= 0 {
		sourceFPS = DefaultSourceFPS
	}
	if targetFPS <= 0 {
		targetFPS = DefaultTargetFPS
	}
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSampleFrames
	}

	step := int(math.RoundToEven(sourceFPS / targetFPS))
	if step < 1 {
		step = 1
	}

	kept := make([]Frame, 0, min(maxSamples, len(frames)/step+1))
	for i := 0; i < len(frames); i += step {
		if frames[i].IsZero() {
			continue
		}
		kept = append(kept, frames[i])
		if len(kept) >= maxSamples {
			break
		}
	}

	rate := int(targetFPS)
	if rate < 1 {
		rate = 1
	}
	return NewSequence(kept, rate)
}
