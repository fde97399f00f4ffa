package present

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

var (
	ErrFrameInProgress = errors.New("present: a frame is already being recorded")
	ErrNoFrame         = errors.New("present: frame is not the one being recorded")
)

type SlotState int

const (
	SlotIdle SlotState = iota
	SlotRendering
	SlotPresentPending
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotRendering:
		return "rendering"
	case SlotPresentPending:
		return "present-pending"
	}
	return "unknown"
}

// Slot tracks the last submission that rendered into a back buffer.
type Slot struct {
	FenceValue queue.FenceValue
	State      SlotState
}

// Frame is handed to the recorder between BeginFrame and EndFrame.
type Frame struct {
	Slot    uint32
	Target  queue.RenderTarget
	Context *queue.RecordingContext
}

// List is the command list to record the frame into.
func (f *Frame) List() queue.CommandList {
	return f.Context.List()
}

// Loop renders into the back buffers of a surface, never touching a buffer
// the GPU may still be writing.
type Loop struct {
	queue   Queue
	surface Surface

	slots   []Slot
	current uint32
	width   uint32
	height  uint32
	vsync   bool
	frame   *Frame
}

func NewLoop(q Queue, s Surface, width, height uint32) *Loop {
	return &Loop{
		queue:   q,
		surface: s,
		slots:   make([]Slot, s.BufferCount()),
		current: s.CurrentSlotIndex(),
		width:   core.AtLeast(width, 1),
		height:  core.AtLeast(height, 1),
		vsync:   true,
	}
}

// BeginFrame waits until the current back buffer is free and opens a
// recording context with the buffer transitioned to a render target.
func (l *Loop) BeginFrame() (*Frame, error) {
	if l.frame != nil {
		return nil, ErrFrameInProgress
	}
	idx := l.current
	slot := &l.slots[idx]
	if err := l.queue.WaitForFenceValue(slot.FenceValue); err != nil {
		return nil, fmt.Errorf("wait for back buffer %d (fence %d): %w", idx, slot.FenceValue, err)
	}
	slot.State = SlotIdle

	ctx, err := l.queue.GetRecordingContext()
	if err != nil {
		return nil, err
	}
	target := l.surface.BackBuffer(idx)
	ctx.Transition(target, queue.StatePresent, queue.StateRenderTarget)
	slot.State = SlotRendering

	l.frame = &Frame{Slot: idx, Target: target, Context: ctx}
	return l.frame, nil
}

// EndFrame submits the frame, remembers its fence value for the slot and
// presents.
func (l *Loop) EndFrame(f *Frame) error {
	if f == nil || f != l.frame {
		return ErrNoFrame
	}
	l.frame = nil
	slot := &l.slots[f.Slot]

	f.Context.Transition(f.Target, queue.StateRenderTarget, queue.StatePresent)
	v, err := l.queue.Submit(f.Context)
	if err != nil {
		slot.State = SlotIdle
		return err
	}
	slot.FenceValue = v
	slot.State = SlotPresentPending

	syncInterval, flags := l.presentParams()
	if err := l.surface.Present(syncInterval, flags); err != nil {
		return fmt.Errorf("present back buffer %d: %w", f.Slot, err)
	}
	l.current = l.surface.CurrentSlotIndex()
	return nil
}

// AbortFrame drops a frame that will not be submitted.
func (l *Loop) AbortFrame(f *Frame) error {
	if f == nil || f != l.frame {
		return ErrNoFrame
	}
	l.frame = nil
	l.slots[f.Slot].State = SlotIdle
	return l.queue.Discard(f.Context)
}

// Render runs one frame. If record fails the frame is dropped and the
// error returned.
func (l *Loop) Render(record func(f *Frame) error) error {
	f, err := l.BeginFrame()
	if err != nil {
		return err
	}
	if err := record(f); err != nil {
		if abortErr := l.AbortFrame(f); abortErr != nil {
			core.LogError("abort frame: %s", abortErr)
		}
		return err
	}
	return l.EndFrame(f)
}

func (l *Loop) presentParams() (uint32, Flags) {
	if l.vsync {
		return 1, 0
	}
	if l.surface.TearingSupported() {
		return 0, AllowTearing
	}
	return 0, 0
}

// Resize waits for the GPU to go idle and recreates the back buffers.
// Unchanged sizes are ignored; zero dimensions are raised to 1.
func (l *Loop) Resize(width, height uint32) error {
	width = core.AtLeast(width, 1)
	height = core.AtLeast(height, 1)
	if width == l.width && height == l.height {
		return nil
	}
	if l.frame != nil {
		return ErrFrameInProgress
	}

	if err := l.queue.Flush(); err != nil {
		return err
	}
	// everything retired with the flush
	for i := range l.slots {
		l.slots[i] = Slot{}
	}
	if err := l.surface.ResizeBuffers(0, width, height); err != nil {
		return fmt.Errorf("resize buffers to %dx%d: %w", width, height, err)
	}
	if n := l.surface.BufferCount(); int(n) != len(l.slots) {
		l.slots = make([]Slot, n)
	}
	l.width = width
	l.height = height
	l.current = l.surface.CurrentSlotIndex()
	core.LogDebug("back buffers resized to %dx%d", width, height)
	return nil
}

func (l *Loop) Size() (uint32, uint32) {
	return l.width, l.height
}

func (l *Loop) VSync() bool {
	return l.vsync
}

func (l *Loop) SetVSync(enabled bool) {
	l.vsync = enabled
}

func (l *Loop) ToggleVSync() bool {
	l.vsync = !l.vsync
	return l.vsync
}

// CurrentSlot is the back buffer the next frame renders into.
func (l *Loop) CurrentSlot() uint32 {
	return l.current
}

// Slots returns a snapshot. Slots whose submission has completed report idle.
func (l *Loop) Slots() []Slot {
	out := make([]Slot, len(l.slots))
	for i, s := range l.slots {
		if s.State == SlotPresentPending && l.queue.IsFenceComplete(s.FenceValue) {
			s.State = SlotIdle
		}
		out[i] = s
	}
	return out
}
