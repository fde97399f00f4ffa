package present

import "github.com/spaghettifunk/cadence/engine/renderer/queue"

type Flags uint32

const (
	// AllowTearing presents without waiting for vertical blank. Only valid
	// with a sync interval of 0 on surfaces that support it.
	AllowTearing Flags = 1 << iota
)

// Surface is a flip model swap chain.
type Surface interface {
	BufferCount() uint32
	// CurrentSlotIndex is the back buffer the next frame renders into.
	CurrentSlotIndex() uint32
	BackBuffer(slot uint32) queue.RenderTarget
	// ResizeBuffers releases every back buffer; none may be in use by the GPU.
	// A count of 0 keeps the current count.
	ResizeBuffers(count, width, height uint32) error
	Present(syncInterval uint32, flags Flags) error
	TearingSupported() bool
}

// Queue is the part of queue.CommandQueue the loop drives.
type Queue interface {
	GetRecordingContext() (*queue.RecordingContext, error)
	Submit(ctx *queue.RecordingContext) (queue.FenceValue, error)
	Discard(ctx *queue.RecordingContext) error
	IsFenceComplete(v queue.FenceValue) bool
	WaitForFenceValue(v queue.FenceValue) error
	Flush() error
}
