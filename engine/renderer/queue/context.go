package queue

import (
	"github.com/google/uuid"
)

type ContextState int

const (
	ContextRecording ContextState = iota
	ContextClosed
	ContextSubmitted
	ContextDiscarded
)

func (s ContextState) String() string {
	switch s {
	case ContextRecording:
		return "recording"
	case ContextClosed:
		return "closed"
	case ContextSubmitted:
		return "submitted"
	case ContextDiscarded:
		return "discarded"
	}
	return "unknown"
}

// pooledAllocator tags an allocator with a stable id for the lifetime of
// the recycler that created it.
type pooledAllocator struct {
	id uuid.UUID
	Allocator
}

type pooledList struct {
	id uuid.UUID
	CommandList
}

// RecordingContext is an open command list together with the allocator
// backing it. The caller owns it until it is submitted or discarded.
type RecordingContext struct {
	owner     *Recycler
	list      *pooledList
	allocator *pooledAllocator
	state     ContextState
	// RetiredAt is the fence value the allocator was last released with,
	// zero when it was freshly created.
	RetiredAt FenceValue
	Reused    bool
}

// List is the command list to record into.
func (c *RecordingContext) List() CommandList {
	return c.list.CommandList
}

func (c *RecordingContext) State() ContextState {
	return c.state
}

func (c *RecordingContext) AllocatorID() uuid.UUID {
	return c.allocator.id
}

func (c *RecordingContext) ListID() uuid.UUID {
	return c.list.id
}

// Transition records a resource state change.
func (c *RecordingContext) Transition(rt RenderTarget, before, after ResourceState) {
	c.list.Transition(rt, before, after)
}
