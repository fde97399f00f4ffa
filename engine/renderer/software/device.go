package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
)

type Options struct {
	// Manual leaves queued work pending until Step or Drain is called.
	Manual bool
	// Latency is spent on every executed item to imitate GPU work.
	Latency time.Duration
	// Tearing is reported by swap chains created on the device.
	Tearing bool
}

// Device is a CPU implementation of the hardware contracts. Each queue
// runs its work in submission order on a dedicated worker.
type Device struct {
	id   uuid.UUID
	opts Options

	mu     sync.Mutex
	lost   error
	queues []*Queue
	fences []*Fence
}

func NewDevice(opts Options) *Device {
	d := &Device{
		id:   uuid.New(),
		opts: opts,
	}
	core.LogDebug("software device %s created (manual=%v latency=%s)", d.id, opts.Manual, opts.Latency)
	return d
}

func (d *Device) Name() string {
	return "software-" + d.id.String()[:8]
}

// Err returns the device removal reason, wrapped in queue.ErrDeviceLost.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

func (d *Device) CreateQueue(t queue.ListType) (queue.HardwareQueue, error) {
	if err := d.Err(); err != nil {
		return nil, err
	}
	q, err := newQueue(d, t)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
	return q, nil
}

func (d *Device) CreateFence(initial uint64) (queue.Fence, error) {
	if err := d.Err(); err != nil {
		return nil, err
	}
	f := &Fence{device: d, completed: initial}
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	return f, nil
}

func (d *Device) CreateAllocator(t queue.ListType) (queue.Allocator, error) {
	if err := d.Err(); err != nil {
		return nil, err
	}
	return &Allocator{id: uuid.New(), device: d, listType: t}, nil
}

func (d *Device) CreateCommandList(t queue.ListType, a queue.Allocator) (queue.CommandList, error) {
	if err := d.Err(); err != nil {
		return nil, err
	}
	alloc, err := d.ownAllocator(a, t)
	if err != nil {
		return nil, err
	}
	return &CommandList{id: uuid.New(), device: d, listType: t, allocator: alloc, open: true}, nil
}

func (d *Device) ownAllocator(a queue.Allocator, t queue.ListType) (*Allocator, error) {
	alloc, ok := a.(*Allocator)
	if !ok || alloc.device != d {
		return nil, ErrForeignObject
	}
	if alloc.listType != t {
		return nil, fmt.Errorf("%w: allocator is %s, list is %s", ErrTypeMismatch, alloc.listType, t)
	}
	return alloc, nil
}

// Lose removes the device. Queued work is dropped, fences stop advancing
// and every later call fails with queue.ErrDeviceLost.
func (d *Device) Lose(reason error) {
	d.mu.Lock()
	if d.lost != nil {
		d.mu.Unlock()
		return
	}
	d.lost = fmt.Errorf("%w: %s: %v", queue.ErrDeviceLost, d.Name(), reason)
	queues := append([]*Queue(nil), d.queues...)
	fences := append([]*Fence(nil), d.fences...)
	d.mu.Unlock()

	core.LogError(d.lost.Error())
	for _, q := range queues {
		q.drop()
	}
	// wake blocked waiters so they observe the loss
	for _, f := range fences {
		f.wakeAll()
	}
}

// Close stops the queue workers. Pending work is finished first.
func (d *Device) Close() {
	d.mu.Lock()
	queues := append([]*Queue(nil), d.queues...)
	d.mu.Unlock()
	for _, q := range queues {
		q.shutdown()
	}
}
