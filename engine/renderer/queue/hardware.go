package queue

import "golang.org/x/image/math/f32"

// FenceValue identifies a point on a queue's timeline. Values are handed
// out strictly increasing starting at 1; 0 is always complete.
type FenceValue uint64

// ListType selects the hardware engine a queue feeds.
type ListType int

const (
	Direct ListType = iota
	Compute
	Copy
)

func (t ListType) String() string {
	switch t {
	case Direct:
		return "direct"
	case Compute:
		return "compute"
	case Copy:
		return "copy"
	}
	return "unknown"
}

// ResourceState is the usage a render target is transitioned between.
type ResourceState int

const (
	StatePresent ResourceState = iota
	StateRenderTarget
)

// Device creates the hardware objects a CommandQueue is built from.
type Device interface {
	CreateQueue(t ListType) (HardwareQueue, error)
	CreateFence(initial uint64) (Fence, error)
	CreateAllocator(t ListType) (Allocator, error)
	// CreateCommandList returns a list that is open for recording
	// against the given allocator.
	CreateCommandList(t ListType, a Allocator) (CommandList, error)
}

// HardwareQueue executes closed command lists and signals fences in
// submission order.
type HardwareQueue interface {
	Execute(lists ...CommandList) error
	Signal(f Fence, value uint64) error
}

// Fence is a monotonically increasing counter written by the GPU.
type Fence interface {
	CompletedValue() uint64
	// SetEventOnCompletion arranges a non-blocking send on event once the
	// completed value reaches value. It sends immediately when it already has.
	SetEventOnCompletion(value uint64, event chan<- struct{}) error
}

// Allocator owns the memory recorded commands live in. Reset fails while
// the GPU may still read from it.
type Allocator interface {
	Reset() error
}

type CommandList interface {
	// Reset re-opens a closed list for recording into a.
	Reset(a Allocator) error
	Close() error
	Transition(rt RenderTarget, before, after ResourceState)
	ClearRenderTarget(rt RenderTarget, color f32.Vec4)
}

// RenderTarget is a back buffer of a presentation surface.
type RenderTarget interface {
	Slot() uint32
}
