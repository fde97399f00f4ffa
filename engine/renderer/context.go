package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

// Backend is a device the renderer can run on: the in-process software
// device or the Vulkan backend.
type Backend interface {
	queue.Device
	Name() string
	// Err reports device loss.
	Err() error
	Close()
}

var listTypes = [...]queue.ListType{queue.Direct, queue.Compute, queue.Copy}

// Context owns one command queue per list type and the presentation loop
// driving the direct queue.
type Context struct {
	backend Backend
	surface present.Surface
	queues  [len(listTypes)]*queue.CommandQueue
	loop    *present.Loop
	closed  bool
}

func NewContext(backend Backend, surface present.Surface, width, height uint32, vsync bool) (*Context, error) {
	c := &Context{backend: backend, surface: surface}
	for i, t := range listTypes {
		q, err := queue.New(backend, t)
		if err != nil {
			c.closeQueues()
			return nil, fmt.Errorf("create %s queue on %s: %w", t, backend.Name(), err)
		}
		c.queues[i] = q
	}
	c.loop = present.NewLoop(c.queues[queue.Direct], surface, width, height)
	c.loop.SetVSync(vsync)
	core.LogInfo("renderer context created on %s (%d back buffers, %dx%d)", backend.Name(), surface.BufferCount(), width, height)
	return c, nil
}

func (c *Context) Backend() Backend {
	return c.backend
}

func (c *Context) Surface() present.Surface {
	return c.surface
}

func (c *Context) Loop() *present.Loop {
	return c.loop
}

// Queue returns the queue of the given type, nil for unknown types.
func (c *Context) Queue(t queue.ListType) *queue.CommandQueue {
	if t < 0 || int(t) >= len(c.queues) {
		return nil
	}
	return c.queues[t]
}

// Flush waits for every queue to drain. All queues are flushed even when
// one of them fails.
func (c *Context) Flush() error {
	var errs []error
	for _, q := range c.queues {
		if q == nil {
			continue
		}
		if err := q.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s queue: %w", q.Type(), err))
		}
	}
	return errors.Join(errs...)
}

// Stats renders the statistics table of every queue.
func (c *Context) Stats() string {
	var b strings.Builder
	for _, q := range c.queues {
		if q != nil {
			b.WriteString(q.Stats().Table())
		}
	}
	return b.String()
}

func (c *Context) closeQueues() error {
	var errs []error
	for _, q := range c.queues {
		if q == nil {
			continue
		}
		if err := q.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s queue: %w", q.Type(), err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes the queues, then releases the backend. The
// backend is released even when flushing fails.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.closeQueues()
	if err != nil {
		core.LogError("renderer shutdown: %s", err)
	}
	c.backend.Close()
	return err
}
