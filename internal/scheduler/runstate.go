package scheduler

import "sync/atomic"

// RunState is the only mutable state shared by concurrent section tasks: the
// global artifact counter. Reservation is compare-and-swap based so the quota
// invariant holds exactly under concurrency; there is never a read-then-write
// across a suspension point.
type RunState struct {
	max     int64
	emitted atomic.Int64
}

func NewRunState(maxArtifacts int) *RunState {
	return &RunState{max: int64(maxArtifacts)}
}

// TryReserve claims one artifact slot before a generation step. The caller
// must Release the slot if generation fails.
func (s *RunState) TryReserve() bool {
	for {
		cur := s.emitted.Load()
		if cur >= s.max {
			return false
		}
		if s.emitted.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns a slot claimed by TryReserve after a failed generation.
func (s *RunState) Release() {
	s.emitted.Add(-1)
}

// Exhausted reports whether the quota is used up. Units observing this are
// skipped without evaluator or generation calls.
func (s *RunState) Exhausted() bool {
	return s.emitted.Load() >= s.max
}

// Emitted is the number of artifact slots currently held or spent.
func (s *RunState) Emitted() int {
	return int(s.emitted.Load())
}
