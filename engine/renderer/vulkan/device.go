package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

var ErrNoSuitableDevice = errors.New("vulkan: no physical device meets the requirements")

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Name           string
	Type           vk.PhysicalDeviceType

	SwapchainSupport VulkanSwapchainSupportInfo

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	ComputeQueueIndex  uint32
	TransferQueueIndex uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	ComputeQueue  vk.Queue
	TransferQueue vk.Queue
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanPhysicalDeviceRequirements struct {
	DeviceExtensionNames []string
	// PreferCPU picks a software rasterizer over hardware, like a WARP adapter.
	PreferCPU bool
}

// Family indices are -1 when the device has no suitable family.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

func (q VulkanPhysicalDeviceQueueFamilyInfo) complete() bool {
	return q.GraphicsFamilyIndex >= 0 && q.PresentFamilyIndex >= 0 &&
		q.ComputeFamilyIndex >= 0 && q.TransferFamilyIndex >= 0
}

// queue returns the VkQueue and family a command list type submits to.
func (d *VulkanDevice) queue(t queue.ListType) (vk.Queue, uint32, error) {
	switch t {
	case queue.Direct:
		return d.GraphicsQueue, d.GraphicsQueueIndex, nil
	case queue.Compute:
		return d.ComputeQueue, d.ComputeQueueIndex, nil
	case queue.Copy:
		return d.TransferQueue, d.TransferQueueIndex, nil
	}
	return nil, 0, fmt.Errorf("%w: %d", queue.ErrUnknownListType, t)
}

func DeviceCreate(context *VulkanContext, requirements VulkanPhysicalDeviceRequirements) error {
	device, queueInfo, err := SelectPhysicalDevice(context, requirements)
	if err != nil {
		return err
	}
	context.Device = device

	core.LogInfo("Creating logical device...")

	// shared families get a single VkQueue
	families := []uint32{}
	seen := map[uint32]bool{}
	for _, idx := range []int32{
		queueInfo.GraphicsFamilyIndex,
		queueInfo.PresentFamilyIndex,
		queueInfo.ComputeFamilyIndex,
		queueInfo.TransferFamilyIndex,
	} {
		if !seen[uint32(idx)] {
			seen[uint32(idx)] = true
			families = append(families, uint32(idx))
		}
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtensions(device.PhysicalDevice, []string{"VK_KHR_portability_subset"}) {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: safeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical); res != vk.Success {
		err := resultError("create logical device", res)
		core.LogError(err.Error())
		return err
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(logical, device.GraphicsQueueIndex, 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(logical, device.PresentQueueIndex, 0, &device.PresentQueue)
	vk.GetDeviceQueue(logical, device.ComputeQueueIndex, 0, &device.ComputeQueue)
	vk.GetDeviceQueue(logical, device.TransferQueueIndex, 0, &device.TransferQueue)
	for _, family := range families {
		context.locks.SetQueueFamily(family)
	}
	core.LogInfo("Queues obtained.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DeviceWaitIdle(device.LogicalDevice)
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
	}
	context.Device = nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return resultError("query surface capabilities", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return resultError("query surface formats", res)
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return resultError("query surface formats", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil); res != vk.Success {
		return resultError("query present modes", res)
	}
	supportInfo.PresentModes = make([]vk.PresentMode, modeCount)
	if modeCount > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, supportInfo.PresentModes); res != vk.Success {
			return resultError("query present modes", res)
		}
	}
	return nil
}

func deviceScore(t vk.PhysicalDeviceType, preferCPU bool) int {
	switch t {
	case vk.PhysicalDeviceTypeCpu:
		if preferCPU {
			return 10
		}
		return 1
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 4
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 3
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	}
	return 0
}

func SelectPhysicalDevice(context *VulkanContext, requirements VulkanPhysicalDeviceRequirements) (*VulkanDevice, VulkanPhysicalDeviceQueueFamilyInfo, error) {
	var none VulkanPhysicalDeviceQueueFamilyInfo

	var count uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &count, nil); res != vk.Success {
		return nil, none, resultError("enumerate physical devices", res)
	}
	if count == 0 {
		return nil, none, fmt.Errorf("%w: no devices which support Vulkan were found", ErrNoSuitableDevice)
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &count, physicalDevices); res != vk.Success {
		return nil, none, resultError("enumerate physical devices", res)
	}

	var best *VulkanDevice
	var bestQueues VulkanPhysicalDeviceQueueFamilyInfo
	bestScore := -1
	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		name := vk.ToString(properties.DeviceName[:])

		candidate := &VulkanDevice{PhysicalDevice: pd, Name: name, Type: properties.DeviceType}
		queueInfo, ok := PhysicalDeviceMeetsRequirements(pd, context.Surface, name, requirements, &candidate.SwapchainSupport)
		if !ok {
			continue
		}
		if score := deviceScore(properties.DeviceType, requirements.PreferCPU); score > bestScore {
			best, bestQueues, bestScore = candidate, queueInfo, score
		}
	}

	if best == nil {
		core.LogError("No physical devices were found which meet the requirements.")
		return nil, none, ErrNoSuitableDevice
	}
	if requirements.PreferCPU && best.Type != vk.PhysicalDeviceTypeCpu {
		core.LogWarn("No CPU Vulkan device available, falling back to '%s'.", best.Name)
	}

	best.GraphicsQueueIndex = uint32(bestQueues.GraphicsFamilyIndex)
	best.PresentQueueIndex = uint32(bestQueues.PresentFamilyIndex)
	best.ComputeQueueIndex = uint32(bestQueues.ComputeFamilyIndex)
	best.TransferQueueIndex = uint32(bestQueues.TransferFamilyIndex)

	core.LogInfo("Selected device: '%s' (%s).", best.Name, deviceTypeName(best.Type))
	core.LogDebug("Graphics Family Index: %d", best.GraphicsQueueIndex)
	core.LogDebug("Present Family Index:  %d", best.PresentQueueIndex)
	core.LogDebug("Compute Family Index:  %d", best.ComputeQueueIndex)
	core.LogDebug("Transfer Family Index: %d", best.TransferQueueIndex)
	return best, bestQueues, nil
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, name string, requirements VulkanPhysicalDeviceRequirements, outSwapchainSupport *VulkanSwapchainSupportInfo) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{-1, -1, -1, -1}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	minTransferScore := 255
	for i := range families {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		transferScore := 0

		if flags&vk.QueueGraphicsBit != 0 {
			if info.GraphicsFamilyIndex < 0 {
				info.GraphicsFamilyIndex = int32(i)
			}
			transferScore++
		}
		if flags&vk.QueueComputeBit != 0 {
			// prefer a family without graphics for async compute
			if info.ComputeFamilyIndex < 0 || flags&vk.QueueGraphicsBit == 0 {
				info.ComputeFamilyIndex = int32(i)
			}
			transferScore++
		}
		// the family doing the least besides transfer is most likely dedicated
		if flags&vk.QueueTransferBit != 0 && transferScore <= minTransferScore {
			minTransferScore = transferScore
			info.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return info, false
		}
		// presenting from the graphics family saves an ownership transfer
		if supportsPresent == vk.True && (info.PresentFamilyIndex < 0 || int32(i) == info.GraphicsFamilyIndex) {
			info.PresentFamilyIndex = int32(i)
		}
	}
	// graphics families always accept transfer work
	if info.TransferFamilyIndex < 0 {
		info.TransferFamilyIndex = info.GraphicsFamilyIndex
	}

	core.LogDebug("%s: graphics=%d present=%d compute=%d transfer=%d", name,
		info.GraphicsFamilyIndex, info.PresentFamilyIndex, info.ComputeFamilyIndex, info.TransferFamilyIndex)

	if !info.complete() {
		core.LogInfo("Device '%s' is missing a required queue family, skipping.", name)
		return info, false
	}
	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogInfo("Device '%s' cannot report swapchain support: %s", name, err)
		return info, false
	}
	if len(outSwapchainSupport.Formats) == 0 || len(outSwapchainSupport.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present on '%s', skipping.", name)
		return info, false
	}
	if !hasDeviceExtensions(device, requirements.DeviceExtensionNames) {
		core.LogInfo("Device '%s' lacks a required extension, skipping.", name)
		return info, false
	}
	return info, true
}

func hasDeviceExtensions(device vk.PhysicalDevice, names []string) bool {
	if len(names) == 0 {
		return true
	}
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	have := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		have[vk.ToString(available[i].ExtensionName[:])] = true
	}
	for _, name := range names {
		if !have[name] {
			return false
		}
	}
	return true
}
