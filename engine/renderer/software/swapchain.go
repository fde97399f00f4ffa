package software

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f32"
)

// BackBuffer is a CPU image written by executed command lists.
type BackBuffer struct {
	slot uint32

	mu     sync.Mutex
	pixels *image.RGBA
	state  queue.ResourceState
	clears uint64

	// executions queued against this buffer and not yet run
	refs     atomic.Int64
	released atomic.Bool
}

func newBackBuffer(slot, width, height uint32) *BackBuffer {
	return &BackBuffer{
		slot:   slot,
		pixels: image.NewRGBA(image.Rect(0, 0, int(width), int(height))),
		state:  queue.StatePresent,
	}
}

func (b *BackBuffer) Slot() uint32 {
	return b.slot
}

func (b *BackBuffer) Released() bool {
	return b.released.Load()
}

func (b *BackBuffer) apply(c command) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch c.kind {
	case cmdTransition:
		if b.state != c.before {
			core.LogWarn("back buffer %d transitioned from %d but is in %d", b.slot, c.before, b.state)
		}
		b.state = c.after
	case cmdClear:
		draw.Draw(b.pixels, b.pixels.Bounds(), image.NewUniform(toColor(c.color)), image.Point{}, draw.Src)
		b.clears++
	}
}

// At returns the pixel at x, y.
func (b *BackBuffer) At(x, y int) color.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pixels.RGBAAt(x, y)
}

func (b *BackBuffer) Size() (uint32, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.pixels.Bounds()
	return uint32(r.Dx()), uint32(r.Dy())
}

func (b *BackBuffer) State() queue.ResourceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BackBuffer) Clears() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clears
}

func toColor(c f32.Vec4) color.RGBA {
	channel := func(v float32) uint8 {
		return uint8(core.Clamp(v, 0, 1)*255 + 0.5)
	}
	return color.RGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: channel(c[3])}
}

// SwapChain is a flip model presentation surface over BackBuffers.
type SwapChain struct {
	device *Device

	mu       sync.Mutex
	buffers  []*BackBuffer
	current  uint32
	width    uint32
	height   uint32
	presents uint64
	lastSync uint32
}

func (d *Device) NewSwapChain(count, width, height uint32) *SwapChain {
	s := &SwapChain{device: d}
	s.allocate(core.AtLeast(count, 1), core.AtLeast(width, 1), core.AtLeast(height, 1))
	return s
}

func (s *SwapChain) allocate(count, width, height uint32) {
	s.buffers = make([]*BackBuffer, count)
	for i := range s.buffers {
		s.buffers[i] = newBackBuffer(uint32(i), width, height)
	}
	s.width = width
	s.height = height
	s.current = 0
}

func (s *SwapChain) BufferCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.buffers))
}

func (s *SwapChain) CurrentSlotIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *SwapChain) BackBuffer(slot uint32) queue.RenderTarget {
	return s.Buffer(slot)
}

// Buffer is BackBuffer with the concrete type.
func (s *SwapChain) Buffer(slot uint32) *BackBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers[slot]
}

func (s *SwapChain) TearingSupported() bool {
	return s.device.opts.Tearing
}

// ResizeBuffers releases every back buffer and allocates new ones. It fails
// while queued work still references a buffer.
func (s *SwapChain) ResizeBuffers(count, width, height uint32) error {
	if err := s.device.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.buffers {
		if b.refs.Load() > 0 {
			return ErrBuffersInUse
		}
	}
	if count == 0 {
		count = uint32(len(s.buffers))
	}
	for _, b := range s.buffers {
		b.released.Store(true)
	}
	s.allocate(count, core.AtLeast(width, 1), core.AtLeast(height, 1))
	return nil
}

func (s *SwapChain) Present(syncInterval uint32, flags present.Flags) error {
	if err := s.device.Err(); err != nil {
		return err
	}
	if flags&present.AllowTearing != 0 && !s.device.opts.Tearing {
		return ErrTearingUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = (s.current + 1) % uint32(len(s.buffers))
	s.presents++
	s.lastSync = syncInterval
	return nil
}

// Presents returns the number of presents and the last sync interval.
func (s *SwapChain) Presents() (uint64, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents, s.lastSync
}

func (s *SwapChain) Size() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
