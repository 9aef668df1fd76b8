package cue

import (
	"math"
	"sort"
	"sync"
)

// SyncPointQueue is the single shared mutable structure in the alignment
// pipeline: a priority queue of pending cue events, guarded by one mutex and
// condition variable. Every stream's goroutine calls into it; GetNext is the
// only blocking operation, and Cancel unblocks every waiter with a clean
// failure rather than letting them hang forever.
//
// The queue is owned by value by whoever constructs it (typically the
// CueAlignmentHandler itself when the caller does not supply one), so there
// is no heap-allocated queue that nothing ever frees.
type SyncPointQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*CueEvent // kept sorted ascending by TimeInSeconds
	cancelled bool
}

// NewSyncPointQueue returns a ready-to-use queue.
func NewSyncPointQueue() *SyncPointQueue {
	q := &SyncPointQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add inserts a cue event and wakes any goroutine blocked in GetNext. The
// insertion point is found by binary search (O(log n)); the insert itself
// shifts the tail of the slice, so Add as a whole is O(n).
func (q *SyncPointQueue) Add(c *CueEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].TimeInSeconds >= c.TimeInSeconds
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = c
	q.cond.Broadcast()
}

// GetNext blocks until a pending cue strictly later than hint exists, then
// removes and returns it. It returns (nil, false) if the queue is cancelled
// while waiting.
func (q *SyncPointQueue) GetNext(hint float64) (*CueEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.cancelled {
			return nil, false
		}
		for i, c := range q.pending {
			if c.TimeInSeconds > hint {
				q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
				return c, true
			}
		}
		q.cond.Wait()
	}
}

// PromoteAt replaces the earliest pending cue's time with time and returns
// it, provided doing so keeps the queue ordered: time must not be before
// the cue it replaces, and must not reach or pass whatever cue follows it.
// It fails (returns false) when there is no pending cue, or when time
// cannot be honored without reordering the queue -- the caller (a video
// stream that failed to land a key frame on the hint) turns that failure
// into ErrNotGopAligned.
func (q *SyncPointQueue) PromoteAt(time float64) (*CueEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	c := q.pending[0]
	if time < c.TimeInSeconds {
		return nil, false
	}
	if len(q.pending) > 1 && q.pending[1].TimeInSeconds <= time {
		return nil, false
	}
	c.TimeInSeconds = time
	q.pending = q.pending[1:]
	q.cond.Broadcast()
	return c, true
}

// GetHint returns the time of the earliest pending cue strictly later than
// after, or +Inf if there is none. It never blocks and never mutates the
// queue.
func (q *SyncPointQueue) GetHint(after float64) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	best := math.Inf(1)
	for _, c := range q.pending {
		if c.TimeInSeconds > after && c.TimeInSeconds < best {
			best = c.TimeInSeconds
		}
	}
	return best
}

// HasMore reports whether any pending cue is strictly later than after.
func (q *SyncPointQueue) HasMore(after float64) bool {
	return !math.IsInf(q.GetHint(after), 1)
}

// Cancel unblocks every goroutine waiting in GetNext with a clean failure.
// It is safe to call more than once.
func (q *SyncPointQueue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = true
	q.cond.Broadcast()
}
