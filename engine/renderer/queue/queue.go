package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/cadence/engine/core"
)

// CommandQueue is the facade a frame loop talks to: it hands out recording
// contexts, submits them and exposes the queue's fence timeline. All methods
// are safe for concurrent use.
type CommandQueue struct {
	mu       sync.Mutex
	listType ListType
	hw       HardwareQueue
	fences   *FenceTracker
	recycler *Recycler
	stats    Stats

	// first unrecoverable error, returned by every later call
	fatal  error
	closed bool
}

// New creates the hardware queue and fence for t on device.
func New(device Device, t ListType) (*CommandQueue, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if t < Direct || t > Copy {
		return nil, fmt.Errorf("%w: %d", ErrUnknownListType, t)
	}

	hw, err := device.CreateQueue(t)
	if err != nil {
		err = fmt.Errorf("create %s hardware queue: %w", t, err)
		core.LogError(err.Error())
		return nil, err
	}
	fence, err := device.CreateFence(0)
	if err != nil {
		err = fmt.Errorf("create %s fence: %w", t, err)
		core.LogError(err.Error())
		return nil, err
	}

	q := &CommandQueue{
		listType: t,
		hw:       hw,
		fences:   NewFenceTracker(hw, fence),
	}
	q.stats.Type = t
	q.recycler = NewRecycler(device, t, q.fences, &q.stats)
	return q, nil
}

func (q *CommandQueue) Type() ListType {
	return q.listType
}

// Hardware exposes the underlying queue, e.g. for swap chain creation.
func (q *CommandQueue) Hardware() HardwareQueue {
	return q.hw
}

func (q *CommandQueue) usable() error {
	if q.fatal != nil {
		return q.fatal
	}
	if q.closed {
		return ErrClosed
	}
	return nil
}

// fail records err as the queue's fatal error. Device loss is never retried.
func (q *CommandQueue) fail(op string, err error) error {
	if q.fatal == nil {
		if errors.Is(err, ErrDeviceLost) {
			q.fatal = fmt.Errorf("%s queue %s: %w", q.listType, op, err)
		} else {
			q.fatal = fmt.Errorf("%s queue %s: %w: %w", q.listType, op, ErrDeviceLost, err)
		}
		core.LogError(q.fatal.Error())
	}
	return q.fatal
}

// GetRecordingContext returns a command list open for recording, backed by
// an allocator the GPU is no longer using.
func (q *CommandQueue) GetRecordingContext() (*RecordingContext, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.usable(); err != nil {
		return nil, err
	}
	ctx, err := q.recycler.AcquireContext()
	if err != nil {
		return nil, q.fail("acquire", err)
	}
	return ctx, nil
}

func (q *CommandQueue) checkOpen(ctx *RecordingContext) error {
	if ctx == nil || ctx.state != ContextRecording {
		return ErrNotRecording
	}
	if ctx.owner != q.recycler {
		return ErrForeignContext
	}
	return nil
}

// Submit closes and executes the context and returns the fence value that
// completes once the GPU has finished it. The context must not be used
// afterwards.
func (q *CommandQueue) Submit(ctx *RecordingContext) (FenceValue, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.usable(); err != nil {
		return 0, err
	}
	if err := q.checkOpen(ctx); err != nil {
		return 0, err
	}

	if err := ctx.list.Close(); err != nil {
		return 0, q.fail("close", err)
	}
	ctx.state = ContextClosed

	if err := q.hw.Execute(ctx.list.CommandList); err != nil {
		return 0, q.fail("execute", err)
	}
	v, err := q.fences.Signal()
	if err != nil {
		return 0, q.fail("signal", err)
	}
	q.recycler.Release(ctx, v)
	ctx.state = ContextSubmitted

	q.stats.Submissions++
	q.stats.Signals++
	return v, nil
}

// Discard closes an open context without executing it. Used when a frame
// is abandoned after recording started. Like Submit it is refused once the
// queue is closed or lost.
func (q *CommandQueue) Discard(ctx *RecordingContext) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.usable(); err != nil {
		return err
	}
	if err := q.checkOpen(ctx); err != nil {
		return err
	}
	if err := ctx.list.Close(); err != nil {
		return q.fail("close", err)
	}
	// nothing reached the GPU, so the allocator retires at once
	q.recycler.Release(ctx, 0)
	ctx.state = ContextDiscarded
	q.stats.Discards++
	return nil
}

// Signal enqueues a fence signal behind all submitted work.
func (q *CommandQueue) Signal() (FenceValue, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.usable(); err != nil {
		return 0, err
	}
	v, err := q.fences.Signal()
	if err != nil {
		return 0, q.fail("signal", err)
	}
	q.stats.Signals++
	return v, nil
}

// IsFenceComplete never blocks.
func (q *CommandQueue) IsFenceComplete(v FenceValue) bool {
	return q.fences.IsComplete(v)
}

// WaitForFenceValue blocks until v is complete.
func (q *CommandQueue) WaitForFenceValue(v FenceValue) error {
	return q.WaitForFenceValueTimeout(v, WaitForever)
}

// WaitForFenceValueTimeout blocks until v is complete or timeout elapses.
// Timing out is not fatal to the queue.
func (q *CommandQueue) WaitForFenceValueTimeout(v FenceValue, timeout time.Duration) error {
	q.mu.Lock()
	if q.fatal != nil {
		err := q.fatal
		q.mu.Unlock()
		return err
	}
	q.stats.Waits++
	if q.fences.IsComplete(v) {
		q.stats.WaitsSatisfied++
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	// the wait happens outside the queue lock so other threads can keep
	// submitting and polling
	err := q.fences.WaitUntil(v, timeout)

	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrWaitTimeout):
		q.stats.Timeouts++
		return err
	default:
		return q.fail("wait", err)
	}
}

// Flush blocks until all work submitted before the call has completed. It
// is safe to call repeatedly.
func (q *CommandQueue) Flush() error {
	v, err := q.Signal()
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.stats.Flushes++
	q.mu.Unlock()
	return q.WaitForFenceValue(v)
}

// Close flushes outstanding work and refuses new work afterwards.
func (q *CommandQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	err := q.Flush()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return err
}

// LastSignaled is the most recent fence value handed out.
func (q *CommandQueue) LastSignaled() FenceValue {
	return q.fences.Last()
}

func (q *CommandQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.PendingAllocators = q.recycler.Pending()
	s.PooledLists = q.recycler.Pooled()
	s.LastSignaled = q.fences.Last()
	s.Completed = q.fences.Completed()
	return s
}
