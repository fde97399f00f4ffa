package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"github.com/spaghettifunk/cadence/engine/systems"
)

type workKind int

const (
	workExecute workKind = iota
	workSignal
)

type work struct {
	kind      workKind
	commands  []command
	allocator *Allocator
	fence     *Fence
	value     uint64
}

// Queue executes work strictly in submission order. Unless the device is
// manual, a single job worker drains it in the background.
type Queue struct {
	device   *Device
	listType queue.ListType

	mu       sync.Mutex
	pending  []work
	executed uint64

	jobs *systems.JobSystem
}

func newQueue(d *Device, t queue.ListType) (*Queue, error) {
	q := &Queue{device: d, listType: t}
	if !d.opts.Manual {
		jobs, err := systems.NewJobSystem(1, 256)
		if err != nil {
			return nil, err
		}
		q.jobs = jobs
	}
	return q, nil
}

func (q *Queue) Execute(lists ...queue.CommandList) error {
	if err := q.device.Err(); err != nil {
		return err
	}

	batch := make([]work, 0, len(lists))
	for _, l := range lists {
		list, ok := l.(*CommandList)
		if !ok || list.device != q.device {
			return ErrForeignObject
		}
		if list.listType != q.listType {
			return fmt.Errorf("%w: queue is %s, list is %s", ErrTypeMismatch, q.listType, list.listType)
		}
		if list.open {
			return ErrListOpen
		}
		for _, c := range list.commands {
			if c.target.Released() {
				return ErrStaleTarget
			}
		}
		batch = append(batch, work{
			kind:      workExecute,
			commands:  append([]command(nil), list.commands...),
			allocator: list.allocator,
		})
	}

	for _, w := range batch {
		w.allocator.inFlight.Add(1)
		for _, c := range w.commands {
			c.target.refs.Add(1)
		}
		q.enqueue(w)
	}
	return nil
}

func (q *Queue) Signal(f queue.Fence, value uint64) error {
	if err := q.device.Err(); err != nil {
		return err
	}
	fence, ok := f.(*Fence)
	if !ok || fence.device != q.device {
		return ErrForeignObject
	}
	q.enqueue(work{kind: workSignal, fence: fence, value: value})
	return nil
}

func (q *Queue) enqueue(w work) {
	q.mu.Lock()
	q.pending = append(q.pending, w)
	q.mu.Unlock()

	if q.jobs != nil {
		q.jobs.Submit(systems.JobTask{
			Name: fmt.Sprintf("%s queue item", q.listType),
			Run: func() error {
				q.runOne()
				return nil
			},
		})
	}
}

// runOne executes the oldest pending item and reports whether there was one.
func (q *Queue) runOne() bool {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	w := q.pending[0]
	q.pending[0] = work{}
	q.pending = q.pending[1:]
	q.mu.Unlock()

	if q.device.Err() != nil {
		return true
	}
	if q.device.opts.Latency > 0 {
		time.Sleep(q.device.opts.Latency)
	}

	switch w.kind {
	case workExecute:
		for _, c := range w.commands {
			c.target.apply(c)
			c.target.refs.Add(-1)
		}
		w.allocator.inFlight.Add(-1)
	case workSignal:
		w.fence.advance(w.value)
	}

	q.mu.Lock()
	q.executed++
	q.mu.Unlock()
	return true
}

// Step runs up to n pending items on the calling goroutine and returns how
// many ran. Only meaningful for manual devices.
func (q *Queue) Step(n int) int {
	ran := 0
	for ran < n && q.runOne() {
		ran++
	}
	return ran
}

// Drain runs every pending item on the calling goroutine.
func (q *Queue) Drain() int {
	ran := 0
	for q.runOne() {
		ran++
	}
	return ran
}

// Pending is the number of queued items not yet executed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Executed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.executed
}

func (q *Queue) drop() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

func (q *Queue) shutdown() {
	if q.jobs != nil {
		q.jobs.Shutdown()
	}
}
