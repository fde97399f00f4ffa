package queue

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/cadence/engine/containers"
)

type completion interface {
	IsComplete(v FenceValue) bool
}

type allocatorEntry struct {
	fence     FenceValue
	allocator *pooledAllocator
}

// Recycler hands out recording contexts, reusing allocators whose last
// submission has retired and command lists returned by earlier submits.
// Allocators are only ever taken from the front of the pending FIFO.
type Recycler struct {
	device   Device
	listType ListType
	fences   completion
	stats    *Stats

	allocators *containers.Queue[allocatorEntry]
	lists      *containers.Queue[*pooledList]
}

func NewRecycler(device Device, t ListType, fences completion, stats *Stats) *Recycler {
	if stats == nil {
		stats = &Stats{}
	}
	return &Recycler{
		device:     device,
		listType:   t,
		fences:     fences,
		stats:      stats,
		allocators: containers.NewQueue[allocatorEntry](4),
		lists:      containers.NewQueue[*pooledList](4),
	}
}

// AcquireContext returns a context open for recording.
func (r *Recycler) AcquireContext() (*RecordingContext, error) {
	ctx := &RecordingContext{owner: r, state: ContextRecording}

	front, err := r.allocators.Peek()
	if err == nil && r.fences.IsComplete(front.fence) {
		_, _ = r.allocators.Dequeue()
		if err := front.allocator.Reset(); err != nil {
			return nil, fmt.Errorf("reset %s allocator %s retired at %d: %w", r.listType, front.allocator.id, front.fence, err)
		}
		ctx.allocator = front.allocator
		ctx.RetiredAt = front.fence
		ctx.Reused = true
		r.stats.AllocatorsReused++
	} else {
		a, err := r.device.CreateAllocator(r.listType)
		if err != nil {
			return nil, fmt.Errorf("create %s allocator: %w", r.listType, err)
		}
		ctx.allocator = &pooledAllocator{id: uuid.New(), Allocator: a}
		r.stats.AllocatorsCreated++
	}

	if list, err := r.lists.Dequeue(); err == nil {
		if err := list.Reset(ctx.allocator.Allocator); err != nil {
			r.discardAllocator(ctx)
			return nil, fmt.Errorf("reset %s command list %s: %w", r.listType, list.id, err)
		}
		ctx.list = list
		r.stats.ListsReused++
	} else {
		l, err := r.device.CreateCommandList(r.listType, ctx.allocator.Allocator)
		if err != nil {
			r.discardAllocator(ctx)
			return nil, fmt.Errorf("create %s command list: %w", r.listType, err)
		}
		ctx.list = &pooledList{id: uuid.New(), CommandList: l}
		r.stats.ListsCreated++
	}
	return ctx, nil
}

// Release retires the context's allocator behind fence and returns its
// command list to the pool. The list may be reset right away; the
// allocator only once fence completes.
func (r *Recycler) Release(ctx *RecordingContext, fence FenceValue) {
	r.allocators.Enqueue(allocatorEntry{fence: fence, allocator: ctx.allocator})
	r.lists.Enqueue(ctx.list)
}

// discardAllocator puts an allocator that never reached the GPU back at
// the tail, tagged with a value that is always complete.
func (r *Recycler) discardAllocator(ctx *RecordingContext) {
	r.allocators.Enqueue(allocatorEntry{fence: 0, allocator: ctx.allocator})
}

// Pending is the number of allocators waiting in the FIFO.
func (r *Recycler) Pending() int {
	return r.allocators.Len()
}

// Pooled is the number of command lists ready for reuse.
func (r *Recycler) Pooled() int {
	return r.lists.Len()
}

// PendingFences lists the retirement fences front to back.
func (r *Recycler) PendingFences() []FenceValue {
	out := make([]FenceValue, 0, r.allocators.Len())
	r.allocators.Each(func(e allocatorEntry) bool {
		out = append(out, e.fence)
		return true
	})
	return out
}
