package vulkan

import (
	"errors"
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

var (
	ErrTearingUnsupported = errors.New("vulkan: tearing requested but the surface has no immediate present mode")
	errOutOfDate          = errors.New("vulkan: swapchain out of date")
)

// BackBuffer is one swapchain image with the view and framebuffer the
// clear pass renders through.
type BackBuffer struct {
	chain       *Swapchain
	slot        uint32
	image       vk.Image
	view        vk.ImageView
	framebuffer *VulkanFramebuffer
}

func (bb *BackBuffer) Slot() uint32 {
	return bb.slot
}

func layoutFor(state queue.ResourceState, discard bool) vk.ImageLayout {
	if state == queue.StateRenderTarget {
		return vk.ImageLayoutColorAttachmentOptimal
	}
	// contents are cleared every frame, so the previous image is dropped
	if discard {
		return vk.ImageLayoutUndefined
	}
	return vk.ImageLayoutPresentSrc
}

func (bb *BackBuffer) barrier(cmd vk.CommandBuffer, before, after queue.ResourceState) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           layoutFor(before, true),
		NewLayout:           layoutFor(after, false),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               bb.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	srcStage := vk.PipelineStageColorAttachmentOutputBit
	dstStage := vk.PipelineStageColorAttachmentOutputBit
	if after == queue.StateRenderTarget {
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
		dstStage = vk.PipelineStageBottomOfPipeBit
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// Swapchain implements present.Surface. The next image is acquired as
// soon as the previous one is presented, so CurrentSlotIndex is always
// known before a frame begins.
type Swapchain struct {
	backend *Backend

	mu             sync.Mutex
	handle         vk.Swapchain
	format         vk.SurfaceFormat
	extent         vk.Extent2D
	mode           vk.PresentMode
	wantMode       vk.PresentMode
	requestedCount uint32
	width, height  uint32
	tearing        bool
	mailbox        bool

	renderpass *VulkanRenderpass
	buffers    []*BackBuffer

	acquireSemaphores []vk.Semaphore
	renderSemaphores  []vk.Semaphore
	nextAcquire       int
	current           uint32
	// acquire semaphore no submission has waited on yet
	pendingAcquire vk.Semaphore
	rendered       bool

	presents uint64
}

func SwapchainCreate(backend *Backend, count, width, height uint32) (*Swapchain, error) {
	s := &Swapchain{
		backend:        backend,
		requestedCount: count,
		width:          width,
		height:         height,
		wantMode:       vk.PresentModeFifo,
	}
	if err := s.create(); err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create() error {
	ctx := s.backend.context
	device := ctx.Device
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, ctx.Surface, &device.SwapchainSupport); err != nil {
		return err
	}
	support := device.SwapchainSupport

	s.format = support.Formats[0]
	for _, f := range support.Formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			s.format = f
			break
		}
	}

	s.tearing, s.mailbox = false, false
	for _, m := range support.PresentModes {
		switch m {
		case vk.PresentModeImmediate:
			s.tearing = true
		case vk.PresentModeMailbox:
			s.mailbox = true
		}
	}
	s.mode = s.resolveMode()

	caps := support.Capabilities
	s.extent = vk.Extent2D{Width: s.width, Height: s.height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		s.extent = caps.CurrentExtent
	}
	s.extent.Width = core.Clamp(s.extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	s.extent.Height = core.Clamp(s.extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	imageCount := core.AtLeast(s.requestedCount, caps.MinImageCount)
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      s.format.Format,
		ImageColorSpace:  s.format.ColorSpace,
		ImageExtent:      s.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      s.mode,
		Clipped:          vk.True,
		OldSwapchain:     s.handle,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex}
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		return resultError("create swapchain", res)
	}
	if s.handle != nil {
		vk.DestroySwapchain(device.LogicalDevice, s.handle, ctx.Allocator)
	}
	s.handle = handle

	if s.renderpass == nil || s.renderpass.Format != s.format.Format {
		if s.renderpass != nil {
			s.renderpass.RenderpassDestroy(ctx)
		}
		rp, err := RenderpassCreate(ctx, s.format.Format)
		if err != nil {
			return err
		}
		s.renderpass = rp
	}

	var count uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, s.handle, &count, nil); res != vk.Success {
		return resultError("get swapchain images", res)
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(device.LogicalDevice, s.handle, &count, images); res != vk.Success {
		return resultError("get swapchain images", res)
	}

	s.buffers = make([]*BackBuffer, count)
	for i, image := range images {
		bb := &BackBuffer{chain: s, slot: uint32(i), image: image}
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   s.format.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(device.LogicalDevice, &viewInfo, ctx.Allocator, &bb.view); res != vk.Success {
			return resultError("create image view", res)
		}
		fb, err := FramebufferCreate(ctx, s.renderpass, s.extent.Width, s.extent.Height, bb.view)
		if err != nil {
			return err
		}
		bb.framebuffer = fb
		s.buffers[i] = bb
	}

	semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	s.acquireSemaphores = make([]vk.Semaphore, count+1)
	for i := range s.acquireSemaphores {
		if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreInfo, ctx.Allocator, &s.acquireSemaphores[i]); res != vk.Success {
			return resultError("create semaphore", res)
		}
	}
	s.renderSemaphores = make([]vk.Semaphore, count)
	for i := range s.renderSemaphores {
		if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreInfo, ctx.Allocator, &s.renderSemaphores[i]); res != vk.Success {
			return resultError("create semaphore", res)
		}
	}
	s.nextAcquire = 0

	core.LogInfo("Swapchain created: %d images %dx%d, present mode %d.", count, s.extent.Width, s.extent.Height, s.mode)
	return s.acquire()
}

// releaseImages drops everything that depends on the current images. The
// swapchain handle itself is kept so it can be passed as the old one.
func (s *Swapchain) releaseImages() {
	ctx := s.backend.context
	dev := ctx.Device.LogicalDevice
	vk.DeviceWaitIdle(dev)
	for _, bb := range s.buffers {
		if bb == nil {
			continue
		}
		if bb.framebuffer != nil {
			bb.framebuffer.Destroy(ctx)
		}
		if bb.view != nil {
			vk.DestroyImageView(dev, bb.view, ctx.Allocator)
		}
	}
	s.buffers = nil
	for _, sem := range append(s.acquireSemaphores, s.renderSemaphores...) {
		if sem != vk.NullSemaphore {
			vk.DestroySemaphore(dev, sem, ctx.Allocator)
		}
	}
	s.acquireSemaphores, s.renderSemaphores = nil, nil
	s.pendingAcquire = vk.NullSemaphore
	s.rendered = false
}

func (s *Swapchain) recreate() error {
	err := s.backend.context.locks.SafeCall(SwapchainManagement, func() error {
		s.releaseImages()
		return s.create()
	})
	if err != nil {
		core.LogError("recreate swapchain: %s", err)
	}
	return err
}

func (s *Swapchain) destroy() {
	ctx := s.backend.context
	s.releaseImages()
	if s.renderpass != nil {
		s.renderpass.RenderpassDestroy(ctx)
		s.renderpass = nil
	}
	if s.handle != nil {
		vk.DestroySwapchain(ctx.Device.LogicalDevice, s.handle, ctx.Allocator)
		s.handle = nil
	}
}

// resolveMode falls back to FIFO, the only mode every surface supports.
func (s *Swapchain) resolveMode() vk.PresentMode {
	if (s.wantMode == vk.PresentModeImmediate && s.tearing) || (s.wantMode == vk.PresentModeMailbox && s.mailbox) {
		return s.wantMode
	}
	return vk.PresentModeFifo
}

func (s *Swapchain) acquire() error {
	sem := s.acquireSemaphores[s.nextAcquire]
	s.nextAcquire = (s.nextAcquire + 1) % len(s.acquireSemaphores)

	var index uint32
	res := vk.AcquireNextImage(s.backend.logical(), s.handle, math.MaxUint64, sem, vk.NullFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return errOutOfDate
	default:
		err := resultError("acquire next image", res)
		s.backend.lose(err)
		return err
	}
	s.current = index
	s.pendingAcquire = sem
	s.rendered = false
	return nil
}

// frameSync returns the semaphores a submission writing targets must wait
// on and signal.
func (s *Swapchain) frameSync(targets []*BackBuffer) (wait, signal []vk.Semaphore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bb := range targets {
		if bb.chain != s || bb.slot != s.current {
			continue
		}
		if s.pendingAcquire != vk.NullSemaphore {
			wait = append(wait, s.pendingAcquire)
			s.pendingAcquire = vk.NullSemaphore
		}
		if !s.rendered {
			signal = append(signal, s.renderSemaphores[s.current])
			s.rendered = true
		}
	}
	return wait, signal
}

func (s *Swapchain) BufferCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.buffers))
}

func (s *Swapchain) CurrentSlotIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Swapchain) BackBuffer(slot uint32) queue.RenderTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(slot) >= len(s.buffers) {
		return nil
	}
	return s.buffers[slot]
}

func (s *Swapchain) TearingSupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tearing
}

func (s *Swapchain) ResizeBuffers(count, width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count > 0 {
		s.requestedCount = count
	}
	s.width, s.height = width, height
	return s.recreate()
}

// Present queues the current image. Vulkan fixes the present mode at
// creation, so a change in sync interval or flags recreates the swapchain
// after this present.
func (s *Swapchain) Present(syncInterval uint32, flags present.Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := vk.PresentModeFifo
	switch {
	case syncInterval > 0:
	case flags&present.AllowTearing != 0:
		if !s.tearing {
			return ErrTearingUnsupported
		}
		want = vk.PresentModeImmediate
	case s.mailbox:
		want = vk.PresentModeMailbox
	}

	var waits []vk.Semaphore
	if s.rendered {
		waits = append(waits, s.renderSemaphores[s.current])
	} else if s.pendingAcquire != vk.NullSemaphore {
		// nothing rendered; only wait for the image to be released
		waits = append(waits, s.pendingAcquire)
		s.pendingAcquire = vk.NullSemaphore
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{s.current},
	}

	device := s.backend.context.Device
	var res vk.Result
	s.backend.context.locks.SafeQueueCall(device.PresentQueueIndex, func() error {
		res = vk.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})
	s.presents++

	switch res {
	case vk.Success:
	case vk.Suboptimal, vk.ErrorOutOfDate:
		core.LogInfo("Swapchain %s, recreating.", VulkanResultString(res))
		s.wantMode = want
		return s.recreate()
	default:
		err := resultError("queue present", res)
		s.backend.lose(err)
		return fmt.Errorf("present image %d: %w", s.current, err)
	}

	s.wantMode = want
	if s.resolveMode() != s.mode {
		return s.recreate()
	}
	if err := s.acquire(); err != errOutOfDate {
		return err
	}
	core.LogInfo("Swapchain out of date on acquire, recreating.")
	return s.recreate()
}

func (s *Swapchain) Presents() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}
