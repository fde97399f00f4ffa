package vulkan

import (
	"math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/containers"
	"github.com/spaghettifunk/cadence/engine/core"
)

type signalPoint struct {
	value  uint64
	handle vk.Fence
}

type fenceWaiter struct {
	value uint64
	event chan<- struct{}
}

// VulkanFence emulates a 64-bit timeline with binary VkFences. Every
// Signal submits a fresh VkFence; points retire in submission order, so
// the completed value is the value of the newest signaled prefix.
type VulkanFence struct {
	backend *Backend

	mu        sync.Mutex
	completed uint64
	pending   *containers.Queue[signalPoint]
	free      []vk.Fence
	// handles with a WaitForFences goroutine parked on them
	waiting  map[vk.Fence]int
	retired  map[vk.Fence]bool
	deferred []fenceWaiter
	// set once the device is lost; no new waits are parked
	lost bool
}

func NewFence(backend *Backend, initial uint64) *VulkanFence {
	return &VulkanFence{
		backend:   backend,
		completed: initial,
		pending:   containers.NewQueue[signalPoint](4),
		waiting:   make(map[vk.Fence]int),
		retired:   make(map[vk.Fence]bool),
	}
}

func (vf *VulkanFence) CompletedValue() uint64 {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	vf.poll()
	return vf.completed
}

// poll retires every signaled point at the front. Callers hold mu.
func (vf *VulkanFence) poll() {
	dev := vf.backend.logical()
	for !vf.pending.IsEmpty() {
		front, _ := vf.pending.Peek()
		res := vk.GetFenceStatus(dev, front.handle)
		if res == vk.NotReady {
			return
		}
		if res != vk.Success {
			vf.backend.lose(resultError("get fence status", res))
			return
		}
		vf.pending.Dequeue()
		vf.completed = front.value
		vf.recycle(front.handle)
	}
}

func (vf *VulkanFence) recycle(handle vk.Fence) {
	if vf.waiting[handle] > 0 {
		vf.retired[handle] = true
		return
	}
	delete(vf.retired, handle)
	if res := vk.ResetFences(vf.backend.logical(), 1, []vk.Fence{handle}); res != vk.Success {
		core.LogWarn("vulkan: reset fence: %s", VulkanResultString(res))
		vk.DestroyFence(vf.backend.logical(), handle, vf.backend.context.Allocator)
		return
	}
	vf.free = append(vf.free, handle)
}

// acquire hands out an unsignaled VkFence for the next signal point.
func (vf *VulkanFence) acquire() (vk.Fence, error) {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	if n := len(vf.free); n > 0 {
		handle := vf.free[n-1]
		vf.free = vf.free[:n-1]
		return handle, nil
	}

	var handle vk.Fence
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if res := vk.CreateFence(vf.backend.logical(), &info, vf.backend.context.Allocator, &handle); res != vk.Success {
		return nil, resultError("create fence", res)
	}
	return handle, nil
}

// push records a submitted signal point and starts waits that were
// registered before the value was signaled.
func (vf *VulkanFence) push(value uint64, handle vk.Fence) {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	point := signalPoint{value: value, handle: handle}
	vf.pending.Enqueue(point)

	remaining := vf.deferred[:0]
	for _, w := range vf.deferred {
		if w.value <= value {
			vf.await(point, w.event)
			continue
		}
		remaining = append(remaining, w)
	}
	vf.deferred = remaining
}

// release returns a handle whose signal never reached the queue.
func (vf *VulkanFence) release(handle vk.Fence) {
	vf.mu.Lock()
	vf.free = append(vf.free, handle)
	vf.mu.Unlock()
}

func (vf *VulkanFence) SetEventOnCompletion(value uint64, event chan<- struct{}) error {
	if err := vf.backend.Err(); err != nil {
		return err
	}
	vf.mu.Lock()
	defer vf.mu.Unlock()
	if vf.lost {
		return vf.backend.Err()
	}
	vf.poll()
	if vf.completed >= value {
		notify(event)
		return nil
	}

	var target *signalPoint
	vf.pending.Each(func(p signalPoint) bool {
		if p.value >= value {
			target = &p
			return false
		}
		return true
	})
	if target == nil {
		vf.deferred = append(vf.deferred, fenceWaiter{value: value, event: event})
		return nil
	}
	vf.await(*target, event)
	return nil
}

// await parks a goroutine on the point's VkFence. Callers hold mu.
func (vf *VulkanFence) await(point signalPoint, event chan<- struct{}) {
	vf.waiting[point.handle]++
	go func() {
		res := vk.WaitForFences(vf.backend.logical(), 1, []vk.Fence{point.handle}, vk.True, math.MaxUint64)
		if res != vk.Success {
			vf.backend.lose(resultError("wait for fences", res))
		}

		vf.mu.Lock()
		vf.waiting[point.handle]--
		if vf.waiting[point.handle] == 0 {
			delete(vf.waiting, point.handle)
		}
		vf.poll()
		if vf.retired[point.handle] {
			vf.recycle(point.handle)
		}
		vf.mu.Unlock()
		notify(event)
	}()
}

// wakeAll releases waiters on values that were never signaled. They
// re-arm and observe the device loss.
func (vf *VulkanFence) wakeAll() {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	vf.lost = true
	for _, w := range vf.deferred {
		notify(w.event)
	}
	vf.deferred = nil
}

func (vf *VulkanFence) destroy() {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	dev := vf.backend.logical()
	for !vf.pending.IsEmpty() {
		p, _ := vf.pending.Dequeue()
		vk.DestroyFence(dev, p.handle, vf.backend.context.Allocator)
	}
	for _, h := range vf.free {
		vk.DestroyFence(dev, h, vf.backend.context.Allocator)
	}
	vf.free = nil
}

func notify(event chan<- struct{}) {
	select {
	case event <- struct{}{}:
	default:
	}
}
