package software

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"golang.org/x/image/math/f32"
)

// Allocator counts the executions still reading commands recorded into it.
type Allocator struct {
	id       uuid.UUID
	device   *Device
	listType queue.ListType
	inFlight atomic.Int64
	resets   atomic.Uint64
}

func (a *Allocator) ID() uuid.UUID {
	return a.id
}

func (a *Allocator) Reset() error {
	if err := a.device.Err(); err != nil {
		return err
	}
	if a.inFlight.Load() > 0 {
		return ErrAllocatorInUse
	}
	a.resets.Add(1)
	return nil
}

// Resets is the number of successful resets.
func (a *Allocator) Resets() uint64 {
	return a.resets.Load()
}

type commandKind int

const (
	cmdTransition commandKind = iota
	cmdClear
)

type command struct {
	kind   commandKind
	target *BackBuffer
	before queue.ResourceState
	after  queue.ResourceState
	color  f32.Vec4
}

// CommandList records commands until closed. Recording errors are
// reported by Close.
type CommandList struct {
	id        uuid.UUID
	device    *Device
	listType  queue.ListType
	allocator *Allocator
	open      bool
	commands  []command
	err       error
}

func (l *CommandList) ID() uuid.UUID {
	return l.id
}

func (l *CommandList) Reset(a queue.Allocator) error {
	if l.open {
		return ErrListOpen
	}
	alloc, err := l.device.ownAllocator(a, l.listType)
	if err != nil {
		return err
	}
	l.allocator = alloc
	l.commands = l.commands[:0]
	l.err = nil
	l.open = true
	return nil
}

func (l *CommandList) Close() error {
	if !l.open {
		return ErrListClosed
	}
	l.open = false
	err := l.err
	l.err = nil
	return err
}

func (l *CommandList) record(rt queue.RenderTarget, cmd command) {
	if !l.open {
		l.err = ErrListClosed
		return
	}
	target, ok := rt.(*BackBuffer)
	if !ok {
		l.err = ErrForeignObject
		return
	}
	cmd.target = target
	l.commands = append(l.commands, cmd)
}

func (l *CommandList) Transition(rt queue.RenderTarget, before, after queue.ResourceState) {
	l.record(rt, command{kind: cmdTransition, before: before, after: after})
}

func (l *CommandList) ClearRenderTarget(rt queue.RenderTarget, color f32.Vec4) {
	l.record(rt, command{kind: cmdClear, color: color})
}
