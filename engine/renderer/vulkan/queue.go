package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

// VulkanQueue submits to the VkQueue backing one command list type.
// Submissions from types sharing a family are serialized by the lock pool.
type VulkanQueue struct {
	backend  *Backend
	listType queue.ListType
	handle   vk.Queue
	family   uint32
}

func (q *VulkanQueue) submit(info []vk.SubmitInfo, fence vk.Fence) error {
	return q.backend.context.locks.SafeQueueCall(q.family, func() error {
		return resultError("queue submit", vk.QueueSubmit(q.handle, uint32(len(info)), info, fence))
	})
}

func (q *VulkanQueue) Execute(lists ...queue.CommandList) error {
	if err := q.backend.Err(); err != nil {
		return err
	}
	buffers := make([]vk.CommandBuffer, 0, len(lists))
	var targets []*BackBuffer
	for _, l := range lists {
		vl, ok := l.(*VulkanCommandList)
		if !ok || vl.backend != q.backend || vl.listType != q.listType {
			return ErrForeignObject
		}
		if vl.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
			return ErrListOpen
		}
		buffers = append(buffers, vl.Handle())
		targets = append(targets, vl.targets...)
	}
	if len(buffers) == 0 {
		return nil
	}

	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(buffers)),
		PCommandBuffers:    buffers,
	}
	if sc := q.backend.swapchain; sc != nil && len(targets) > 0 {
		wait, signal := sc.frameSync(targets)
		if len(wait) > 0 {
			stages := make([]vk.PipelineStageFlags, len(wait))
			for i := range stages {
				stages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
			}
			info.WaitSemaphoreCount = uint32(len(wait))
			info.PWaitSemaphores = wait
			info.PWaitDstStageMask = stages
		}
		info.SignalSemaphoreCount = uint32(len(signal))
		info.PSignalSemaphores = signal
	}

	if err := q.submit([]vk.SubmitInfo{info}, vk.NullFence); err != nil {
		q.backend.lose(err)
		return err
	}
	return nil
}

// Signal submits an empty batch carrying a fresh VkFence. It is signaled
// once everything submitted to the queue before it has completed.
func (q *VulkanQueue) Signal(f queue.Fence, value uint64) error {
	if err := q.backend.Err(); err != nil {
		return err
	}
	fence, ok := f.(*VulkanFence)
	if !ok || fence.backend != q.backend {
		return ErrForeignObject
	}
	handle, err := fence.acquire()
	if err != nil {
		return err
	}
	if err := q.submit(nil, handle); err != nil {
		fence.release(handle)
		q.backend.lose(err)
		return err
	}
	fence.push(value, handle)
	return nil
}
