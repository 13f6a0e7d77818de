package analysis

import (
	"sync"
	"sync/atomic"
)

// TerminationThreshold is the hard cutoff: once an interview accumulates this
// many gaze violations it is over, with no grace or appeal path.
const TerminationThreshold = 5

// ViolationTracker is the running, cross-question violation counter for one
// interview. Batches are added atomically per answer, never per frame; the
// count is monotonically non-decreasing for the tracker's lifetime.
type ViolationTracker struct {
	threshold int64
	total     atomic.Int64
}

func NewViolationTracker(threshold int) *ViolationTracker {
	if threshold <= 0 {
		threshold = TerminationThreshold
	}
	return &ViolationTracker{threshold: int64(threshold)}
}

// Record adds one answer's violation batch and returns the new total.
func (t *ViolationTracker) Record(n int) int {
	if n <= 0 {
		return int(t.total.Load())
	}
	return int(t.total.Add(int64(n)))
}

func (t *ViolationTracker) Total() int {
	return int(t.total.Load())
}

// ShouldTerminate is authoritative: callers must check it before accepting
// further answers.
func (t *ViolationTracker) ShouldTerminate() bool {
	return t.total.Load() >= t.threshold
}

// ViolationRegistry owns one tracker per active interview. Starting a new
// interview is the only thing that produces a fresh counter; navigating
// between questions never resets it.
type ViolationRegistry struct {
	mu       sync.Mutex
	trackers map[string]*ViolationTracker
}

func NewViolationRegistry() *ViolationRegistry {
	return &ViolationRegistry{trackers: make(map[string]*ViolationTracker)}
}

// Get returns the interview's tracker, creating it on first use. seed
// backfills a total already persisted for the interview (process restart).
func (r *ViolationRegistry) Get(interviewID string, seed int) *ViolationTracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[interviewID]; ok {
		return t
	}

	t := NewViolationTracker(TerminationThreshold)
	if seed > 0 {
		t.total.Store(int64(seed))
	}
	r.trackers[interviewID] = t
	return t
}

// Reset installs a zeroed tracker for a newly started interview.
func (r *ViolationRegistry) Reset(interviewID string) {
	r.mu.Lock()
	r.trackers[interviewID] = NewViolationTracker(TerminationThreshold)
	r.mu.Unlock()
}

// Drop releases the tracker once the interview reaches a terminal state.
func (r *ViolationRegistry) Drop(interviewID string) {
	r.mu.Lock()
	delete(r.trackers, interviewID)
	r.mu.Unlock()
}
