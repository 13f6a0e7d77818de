package analysis

import "sync"

// DefaultFrameCapacity bounds one capture burst.
const DefaultFrameCapacity = 150

// FrameBuffer is a bounded, thread-safe buffer between the live capture
// producer and the batch analysis consumer. Admission is oldest-first: once
// full (or stopped) additional frames are dropped, not queued. The consumer
// calls Stop and then Drain exactly once capture has ended.
type FrameBuffer struct {
	mu      sync.Mutex
	frames  []Frame
	cap     int
	stopped bool
	dropped int
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultFrameCapacity
	}
	return &FrameBuffer{
		frames: make([]Frame, 0, capacity),
		cap:    capacity,
	}
}

// Push admits a frame. It returns false when the frame was dropped because
// the buffer is full or the burst has been stopped; dropping is not an error.
func (b *FrameBuffer) Push(f Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped || len(b.frames) >= b.cap {
		b.dropped++
		return false
	}

	f.Index = len(b.frames)
	b.frames = append(b.frames, f)
	return true
}

// Len reports the number of admitted frames so far.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Stop ends admission. Safe to call more than once.
func (b *FrameBuffer) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

// Drain stops admission and hands the buffered frames to the caller. A zero
// frame count is valid (early cancellation): it means no video evidence, not
// an error. The buffer must not be reused afterwards.
func (b *FrameBuffer) Drain() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	out := b.frames
	b.frames = nil
	return out
}

// Dropped reports how many frames were rejected after the cap was reached.
func (b *FrameBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
