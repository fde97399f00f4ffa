package queue

import (
	"errors"
	"sync"

	"golang.org/x/image/math/f32"
)

var errAllocatorInUse = errors.New("allocator reset while the GPU may use it")

type fakeWaiter struct {
	value uint64
	event chan<- struct{}
}

type fakeFence struct {
	mu        sync.Mutex
	completed uint64
	waiters   []fakeWaiter
	armErr    error
}

func (f *fakeFence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *fakeFence) SetEventOnCompletion(value uint64, event chan<- struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	if f.completed >= value {
		notify(event)
		return nil
	}
	f.waiters = append(f.waiters, fakeWaiter{value: value, event: event})
	return nil
}

// set forces the observed value, including backwards.
func (f *fakeFence) set(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = v
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= v {
			notify(w.event)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

func notify(event chan<- struct{}) {
	select {
	case event <- struct{}{}:
	default:
	}
}

type fakeQueue struct {
	mu sync.Mutex
	// completes every signal right away
	autoComplete bool
	signalErr    error
	executeErr   error
	signals      []uint64
	executed     int
	inFlight     []*fakeAllocator
}

func (q *fakeQueue) Execute(lists ...CommandList) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.executeErr != nil {
		return q.executeErr
	}
	for _, l := range lists {
		fl := l.(*fakeList)
		if fl.open {
			return errors.New("executing an open list")
		}
		q.inFlight = append(q.inFlight, fl.alloc)
	}
	q.executed += len(lists)
	return nil
}

func (q *fakeQueue) Signal(f Fence, value uint64) error {
	q.mu.Lock()
	if q.signalErr != nil {
		q.mu.Unlock()
		return q.signalErr
	}
	q.signals = append(q.signals, value)
	for _, a := range q.inFlight {
		a.retireAt = value
	}
	q.inFlight = nil
	auto := q.autoComplete
	q.mu.Unlock()

	if auto {
		f.(*fakeFence).set(value)
	}
	return nil
}

type fakeAllocator struct {
	fence    *fakeFence
	retireAt uint64
	resets   int
}

func (a *fakeAllocator) Reset() error {
	if a.fence.CompletedValue() < a.retireAt {
		return errAllocatorInUse
	}
	a.resets++
	return nil
}

type fakeList struct {
	alloc  *fakeAllocator
	open   bool
	clears int
}

func (l *fakeList) Reset(a Allocator) error {
	if l.open {
		return errors.New("reset of an open list")
	}
	l.alloc = a.(*fakeAllocator)
	l.open = true
	return nil
}

func (l *fakeList) Close() error {
	if !l.open {
		return errors.New("close of a closed list")
	}
	l.open = false
	return nil
}

func (l *fakeList) Transition(rt RenderTarget, before, after ResourceState) {}

func (l *fakeList) ClearRenderTarget(rt RenderTarget, color f32.Vec4) {
	l.clears++
}

type fakeDevice struct {
	queue      *fakeQueue
	fence      *fakeFence
	allocators []*fakeAllocator
	lists      []*fakeList
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		queue: &fakeQueue{},
		fence: &fakeFence{},
	}
}

func (d *fakeDevice) CreateQueue(t ListType) (HardwareQueue, error) {
	return d.queue, nil
}

func (d *fakeDevice) CreateFence(initial uint64) (Fence, error) {
	d.fence.completed = initial
	return d.fence, nil
}

func (d *fakeDevice) CreateAllocator(t ListType) (Allocator, error) {
	a := &fakeAllocator{fence: d.fence}
	d.allocators = append(d.allocators, a)
	return a, nil
}

func (d *fakeDevice) CreateCommandList(t ListType, a Allocator) (CommandList, error) {
	l := &fakeList{alloc: a.(*fakeAllocator), open: true}
	d.lists = append(d.lists, l)
	return l, nil
}

// submitEmpty records nothing and submits, failing the test on error.
func submitEmpty(q *CommandQueue) (FenceValue, *RecordingContext, error) {
	ctx, err := q.GetRecordingContext()
	if err != nil {
		return 0, nil, err
	}
	v, err := q.Submit(ctx)
	return v, ctx, err
}
