package software

import "sync"

type fenceWaiter struct {
	value uint64
	event chan<- struct{}
}

// Fence is advanced by signal work on a queue.
type Fence struct {
	device *Device

	mu        sync.Mutex
	completed uint64
	waiters   []fenceWaiter
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *Fence) SetEventOnCompletion(value uint64, event chan<- struct{}) error {
	if err := f.device.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed >= value {
		notify(event)
		return nil
	}
	f.waiters = append(f.waiters, fenceWaiter{value: value, event: event})
	return nil
}

func (f *Fence) advance(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= f.completed {
			notify(w.event)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

func (f *Fence) wakeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.waiters {
		notify(w.event)
	}
	f.waiters = nil
}

func notify(event chan<- struct{}) {
	select {
	case event <- struct{}{}:
	default:
	}
}
