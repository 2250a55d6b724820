package pose

import "sync"

// DefaultSmoothingWindow is the number of recent frames averaged together.
const DefaultSmoothingWindow = 3

// SmoothingBuffer is a bounded FIFO of the most recent raw frames for one
// input cadence. The smoothed frame is recomputed from the buffered frames on
// every read rather than carried as a running mean. Safe for concurrent use.
type SmoothingBuffer struct {
	mu       sync.Mutex
	capacity int
	frames   []Frame
}

// NewSmoothingBuffer returns a buffer holding at most capacity frames.
// capacity < 1 selects DefaultSmoothingWindow.
func NewSmoothingBuffer(capacity int) *SmoothingBuffer {
	if capacity < 1 {
		capacity = DefaultSmoothingWindow
	}
	return &SmoothingBuffer{
		capacity: capacity,
		frames:   make([]Frame, 0, capacity+1),
	}
}

// Capacity returns the maximum number of buffered frames.
func (b *SmoothingBuffer) Capacity() int { return b.capacity }

// Push appends f and evicts the oldest frame once the buffer is over
// capacity. Absent frames are ignored. It returns the buffered count.
func (b *SmoothingBuffer) Push(f Frame) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f.IsZero() {
		return len(b.frames)
	}
	b.frames = append(b.frames, f)
	if len(b.frames) > b.capacity {
		copy(b.frames, b.frames[1:])
		b.frames[len(b.frames)-1] = Frame{}
		b.frames = b.frames[:len(b.frames)-1]
	}
	return len(b.frames)
}

// Len returns the number of buffered frames.
func (b *SmoothingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Frames returns the buffered frames, oldest first.
func (b *SmoothingBuffer) Frames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]Frame, len(b.frames))
	copy(cp, b.frames)
	return cp
}

// Mean returns the element-wise mean of the buffered frames.
func (b *SmoothingBuffer) Mean() (Frame, bool) {
	return Mean(b.Frames())
}

// Snapshot returns the buffered frames and their mean from one consistent
// read of the buffer.
func (b *SmoothingBuffer) Snapshot() (frames []Frame, mean Frame, ok bool) {
	frames = b.Frames()
	mean, ok = Mean(frames)
	return frames, mean, ok
}

// Reset drops all buffered frames.
func (b *SmoothingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
}
