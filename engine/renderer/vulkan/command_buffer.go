package vulkan

import (
	"errors"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"golang.org/x/image/math/f32"
)

var (
	ErrForeignObject = errors.New("vulkan: object was not created by this backend")
	ErrListOpen      = errors.New("vulkan: command list is open")
	ErrListClosed    = errors.New("vulkan: command list is closed")
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanAllocator is a command pool owning one primary command buffer.
// Resetting the pool recycles the buffer's memory.
type VulkanAllocator struct {
	backend  *Backend
	listType queue.ListType
	family   uint32
	pool     vk.CommandPool
	buffer   vk.CommandBuffer
}

func newAllocator(b *Backend, t queue.ListType) (*VulkanAllocator, error) {
	_, family, err := b.context.Device.queue(t)
	if err != nil {
		return nil, err
	}
	a := &VulkanAllocator{backend: b, listType: t, family: family}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if res := vk.CreateCommandPool(b.logical(), &poolCreateInfo, b.context.Allocator, &a.pool); res != vk.Success {
		return nil, resultError("create command pool", res)
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        a.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(b.logical(), &allocateInfo, buffers); res != vk.Success {
		vk.DestroyCommandPool(b.logical(), a.pool, b.context.Allocator)
		return nil, resultError("allocate command buffer", res)
	}
	a.buffer = buffers[0]
	return a, nil
}

func (a *VulkanAllocator) Reset() error {
	if err := a.backend.Err(); err != nil {
		return err
	}
	return a.backend.context.locks.SafeCall(CommandPoolManagement, func() error {
		return resultError("reset command pool", vk.ResetCommandPool(a.backend.logical(), a.pool, 0))
	})
}

func (a *VulkanAllocator) destroy() {
	vk.FreeCommandBuffers(a.backend.logical(), a.pool, 1, []vk.CommandBuffer{a.buffer})
	vk.DestroyCommandPool(a.backend.logical(), a.pool, a.backend.context.Allocator)
	a.buffer = nil
	a.pool = nil
}

// VulkanCommandList records into the command buffer of the allocator it
// was last reset against. Recording errors surface from Close.
type VulkanCommandList struct {
	backend   *Backend
	listType  queue.ListType
	allocator *VulkanAllocator
	State     VulkanCommandBufferState
	// back buffers written by this recording, in order
	targets []*BackBuffer
	states  map[*BackBuffer]queue.ResourceState
	err     error
}

func (l *VulkanCommandList) Handle() vk.CommandBuffer {
	if l.allocator == nil {
		return nil
	}
	return l.allocator.buffer
}

func (l *VulkanCommandList) Reset(a queue.Allocator) error {
	if l.State == COMMAND_BUFFER_STATE_RECORDING {
		return ErrListOpen
	}
	alloc, err := l.backend.ownAllocator(a, l.listType)
	if err != nil {
		return err
	}
	return l.begin(alloc)
}

func (l *VulkanCommandList) begin(alloc *VulkanAllocator) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(alloc.buffer, &beginInfo); res != vk.Success {
		return resultError("begin command buffer", res)
	}
	l.allocator = alloc
	l.targets = l.targets[:0]
	l.states = make(map[*BackBuffer]queue.ResourceState)
	l.err = nil
	l.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (l *VulkanCommandList) Close() error {
	if l.State != COMMAND_BUFFER_STATE_RECORDING {
		return ErrListClosed
	}
	l.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	if res := vk.EndCommandBuffer(l.allocator.buffer); res != vk.Success {
		return resultError("end command buffer", res)
	}
	err := l.err
	l.err = nil
	return err
}

func (l *VulkanCommandList) target(rt queue.RenderTarget) *BackBuffer {
	if l.State != COMMAND_BUFFER_STATE_RECORDING {
		l.err = ErrListClosed
		return nil
	}
	bb, ok := rt.(*BackBuffer)
	if !ok || bb.chain.backend != l.backend {
		l.err = ErrForeignObject
		return nil
	}
	for _, t := range l.targets {
		if t == bb {
			return bb
		}
	}
	l.targets = append(l.targets, bb)
	return bb
}

func (l *VulkanCommandList) Transition(rt queue.RenderTarget, before, after queue.ResourceState) {
	bb := l.target(rt)
	if bb == nil || before == after {
		return
	}
	bb.barrier(l.allocator.buffer, before, after)
	l.states[bb] = after
}

func (l *VulkanCommandList) ClearRenderTarget(rt queue.RenderTarget, color f32.Vec4) {
	bb := l.target(rt)
	if bb == nil {
		return
	}
	// the clear pass expects color attachment layout
	if state := l.states[bb]; state != queue.StateRenderTarget {
		bb.barrier(l.allocator.buffer, state, queue.StateRenderTarget)
		l.states[bb] = queue.StateRenderTarget
	}
	bb.chain.renderpass.Clear(l.allocator.buffer, bb.framebuffer, bb.chain.extent, color)
}
