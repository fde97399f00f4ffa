package vulkan

import "sync"

type LockGroup string

const (
	SwapchainManagement       LockGroup = "swapchain_management"
	SynchronizationManagement LockGroup = "synchronization_management"
	CommandPoolManagement     LockGroup = "command_pool_management"
)

// VulkanLockPool serializes access to externally synchronized Vulkan
// objects. A VkQueue may back more than one command queue, so submissions
// lock by queue family.
type VulkanLockPool struct {
	mu           sync.Mutex
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) group(g LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.locks[g]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[g] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(g LockGroup, fn func() error) error {
	l := vs.group(g)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SetQueueFamily registers the lock for a queue family. Calling it again
// for the same family is a no-op.
func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if _, ok := vs.queueMutexes[index]; !ok {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

func (vs *VulkanLockPool) SafeQueueCall(family uint32, fn func() error) error {
	vs.mu.Lock()
	l, ok := vs.queueMutexes[family]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[family] = l
	}
	vs.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}
