package queue

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// WaitForever disables the timeout of a fence wait.
const WaitForever = time.Duration(math.MaxInt64)

// FenceTracker owns the timeline of one hardware queue: it hands out fence
// values, answers completion queries and blocks until a value is reached.
type FenceTracker struct {
	queue HardwareQueue
	fence Fence

	// last value handed out by Signal
	last atomic.Uint64
	// highest completed value ever observed
	completed atomic.Uint64

	// waitMu guards the reusable event; concurrent waiters use their own.
	waitMu sync.Mutex
	event  chan struct{}
}

func NewFenceTracker(q HardwareQueue, f Fence) *FenceTracker {
	t := &FenceTracker{
		queue: q,
		fence: f,
		event: make(chan struct{}, 1),
	}
	t.completed.Store(f.CompletedValue())
	t.last.Store(t.completed.Load())
	return t
}

// Signal enqueues a signal of the next fence value behind all previously
// submitted work and returns that value.
func (t *FenceTracker) Signal() (FenceValue, error) {
	v := t.last.Add(1)
	if err := t.queue.Signal(t.fence, v); err != nil {
		return 0, fmt.Errorf("signal fence value %d: %w", v, err)
	}
	return FenceValue(v), nil
}

// IsComplete reports whether the GPU has passed v. Once true for a value it
// stays true.
func (t *FenceTracker) IsComplete(v FenceValue) bool {
	if uint64(v) <= t.completed.Load() {
		return true
	}
	return uint64(v) <= t.observe()
}

// observe polls the hardware fence and folds it into the cached maximum.
func (t *FenceTracker) observe() uint64 {
	current := t.fence.CompletedValue()
	for {
		seen := t.completed.Load()
		if current <= seen {
			return seen
		}
		if t.completed.CompareAndSwap(seen, current) {
			return current
		}
	}
}

// WaitUntil blocks until v is complete or the timeout elapses. A timeout
// returns ErrWaitTimeout and leaves the tracker usable.
func (t *FenceTracker) WaitUntil(v FenceValue, timeout time.Duration) error {
	if t.IsComplete(v) {
		return nil
	}

	var expired <-chan time.Time
	if timeout != WaitForever {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	event := t.event
	if t.waitMu.TryLock() {
		defer t.waitMu.Unlock()
		// drop a notification left over from an earlier wait
		select {
		case <-event:
		default:
		}
	} else {
		// another waiter holds the shared event
		event = make(chan struct{}, 1)
	}

	for !t.IsComplete(v) {
		if err := t.fence.SetEventOnCompletion(uint64(v), event); err != nil {
			return fmt.Errorf("arm completion event for fence value %d: %w", v, err)
		}
		select {
		case <-event:
		case <-expired:
			if t.IsComplete(v) {
				return nil
			}
			return fmt.Errorf("%w: value %d, completed %d", ErrWaitTimeout, v, t.Completed())
		}
	}
	return nil
}

// Flush signals a new value and waits for it, so every piece of work
// submitted before the call has finished when it returns.
func (t *FenceTracker) Flush() (FenceValue, error) {
	v, err := t.Signal()
	if err != nil {
		return 0, err
	}
	return v, t.WaitUntil(v, WaitForever)
}

// Last is the most recently signaled value.
func (t *FenceTracker) Last() FenceValue {
	return FenceValue(t.last.Load())
}

// Completed is the highest completed value observed so far.
func (t *FenceTracker) Completed() FenceValue {
	return FenceValue(t.observe())
}
