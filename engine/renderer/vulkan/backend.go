package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Window is the part of the platform window the backend presents to.
type Window interface {
	RequiredExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

type Options struct {
	AppName     string
	Validation  bool
	PreferCPU   bool
	BufferCount uint32
	Width       uint32
	Height      uint32
}

// Backend implements queue.Device on a Vulkan logical device and owns the
// window swapchain.
type Backend struct {
	context   *VulkanContext
	swapchain *Swapchain

	mu         sync.Mutex
	lost       error
	fences     []*VulkanFence
	allocators []*VulkanAllocator
}

func New(window Window, opts Options) (*Backend, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("vulkan: GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan: init: %w", err)
	}

	b := &Backend{context: &VulkanContext{locks: NewVulkanLockPool()}}
	if err := b.createInstance(window, opts); err != nil {
		b.context.destroy()
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(b.context.Instance)
	if err != nil {
		b.context.destroy()
		return nil, fmt.Errorf("vulkan: create surface: %w", err)
	}
	b.context.Surface = surface

	requirements := VulkanPhysicalDeviceRequirements{
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		PreferCPU:            opts.PreferCPU,
	}
	if err := DeviceCreate(b.context, requirements); err != nil {
		b.context.destroy()
		return nil, err
	}

	sc, err := SwapchainCreate(b, opts.BufferCount, opts.Width, opts.Height)
	if err != nil {
		b.context.destroy()
		return nil, err
	}
	b.swapchain = sc

	core.LogInfo("Vulkan backend initialized on '%s'.", b.context.Device.Name)
	return b, nil
}

func (b *Backend) createInstance(window Window, opts Options) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(opts.AppName),
		PEngineName:        safeString("Cadence"),
	}

	extensions := appendUnique(window.RequiredExtensions(), "VK_KHR_surface")
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	if runtime.GOOS == "darwin" {
		extensions = appendUnique(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if opts.Validation {
		if !hasInstanceLayer(validationLayer) {
			core.LogWarn("Validation requested but %s is not installed.", validationLayer)
		} else {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		}
	}
	for _, ext := range extensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &instance); res != vk.Success {
		err := resultError("create instance", res)
		core.LogError(err.Error())
		return err
	}
	b.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("vulkan: init instance: %w", err)
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, b.context.Allocator, &dbg); res != vk.Success {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", VulkanResultString(res))
		} else {
			b.context.debugCallback = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return nil
}

func appendUnique(list []string, names ...string) []string {
	for _, name := range names {
		found := false
		for _, have := range list {
			if have == name {
				found = true
				break
			}
		}
		if !found {
			list = append(list, name)
		}
	}
	return list
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if vk.ToString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (b *Backend) Name() string {
	return "vulkan-" + b.context.Device.Name
}

func (b *Backend) Swapchain() *Swapchain {
	return b.swapchain
}

func (b *Backend) logical() vk.Device {
	return b.context.Device.LogicalDevice
}

// Err is the device loss that made the backend unusable, if any.
func (b *Backend) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lost
}

// lose records err when it reports device loss. Other failures are left
// to the caller.
func (b *Backend) lose(err error) {
	if !errors.Is(err, queue.ErrDeviceLost) {
		return
	}
	b.mu.Lock()
	if b.lost != nil {
		b.mu.Unlock()
		return
	}
	b.lost = err
	fences := append([]*VulkanFence(nil), b.fences...)
	b.mu.Unlock()

	core.LogError(err.Error())
	// lose can be reached from a fence holding its own lock
	for _, f := range fences {
		go f.wakeAll()
	}
}

func (b *Backend) CreateQueue(t queue.ListType) (queue.HardwareQueue, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	handle, family, err := b.context.Device.queue(t)
	if err != nil {
		return nil, err
	}
	return &VulkanQueue{backend: b, listType: t, handle: handle, family: family}, nil
}

func (b *Backend) CreateFence(initial uint64) (queue.Fence, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	f := NewFence(b, initial)
	b.mu.Lock()
	b.fences = append(b.fences, f)
	b.mu.Unlock()
	return f, nil
}

func (b *Backend) CreateAllocator(t queue.ListType) (queue.Allocator, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	a, err := newAllocator(b, t)
	if err != nil {
		b.lose(err)
		return nil, err
	}
	b.mu.Lock()
	b.allocators = append(b.allocators, a)
	b.mu.Unlock()
	return a, nil
}

func (b *Backend) CreateCommandList(t queue.ListType, a queue.Allocator) (queue.CommandList, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	alloc, err := b.ownAllocator(a, t)
	if err != nil {
		return nil, err
	}
	l := &VulkanCommandList{backend: b, listType: t}
	if err := l.begin(alloc); err != nil {
		return nil, err
	}
	return l, nil
}

func (b *Backend) ownAllocator(a queue.Allocator, t queue.ListType) (*VulkanAllocator, error) {
	alloc, ok := a.(*VulkanAllocator)
	if !ok || alloc.backend != b {
		return nil, ErrForeignObject
	}
	if alloc.listType != t {
		return nil, fmt.Errorf("%w: allocator is %s, list is %s", ErrForeignObject, alloc.listType, t)
	}
	return alloc, nil
}

// Close waits for the device to go idle and destroys everything the
// backend created. Queues must have been flushed.
func (b *Backend) Close() {
	if b.context.Device != nil {
		vk.DeviceWaitIdle(b.logical())
	}
	if b.swapchain != nil {
		b.swapchain.destroy()
		b.swapchain = nil
	}
	b.mu.Lock()
	for _, f := range b.fences {
		f.destroy()
	}
	for _, a := range b.allocators {
		a.destroy()
	}
	b.fences, b.allocators = nil, nil
	b.mu.Unlock()
	b.context.destroy()
	core.LogInfo("Vulkan backend shut down.")
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
