package queue

import (
	"errors"
	"testing"
	"time"
)

func TestSignalValuesAreSequential(t *testing.T) {
	dev := newFakeDevice()
	tracker := NewFenceTracker(dev.queue, dev.fence)

	for i := 1; i <= 10; i++ {
		v, err := tracker.Signal()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != FenceValue(i) {
			t.Fatalf("expected fence value %d; got %d", i, v)
		}
	}
	if tracker.Last() != 10 {
		t.Fatalf("expected last value 10; got %d", tracker.Last())
	}
}

func TestIsCompleteNeverRegresses(t *testing.T) {
	dev := newFakeDevice()
	tracker := NewFenceTracker(dev.queue, dev.fence)

	if !tracker.IsComplete(0) {
		t.Fatal("expected value 0 to be complete")
	}
	if tracker.IsComplete(3) {
		t.Fatal("expected value 3 to be pending")
	}

	dev.fence.set(3)
	if !tracker.IsComplete(3) {
		t.Fatal("expected value 3 to be complete")
	}

	// a stale read from the hardware must not un-complete anything
	dev.fence.set(1)
	for v := FenceValue(1); v <= 3; v++ {
		if !tracker.IsComplete(v) {
			t.Fatalf("expected value %d to stay complete", v)
		}
	}
	if tracker.Completed() != 3 {
		t.Fatalf("expected completed 3; got %d", tracker.Completed())
	}
}

func TestWaitUntilBlocksUntilReached(t *testing.T) {
	dev := newFakeDevice()
	tracker := NewFenceTracker(dev.queue, dev.fence)

	for i := 0; i < 3; i++ {
		if _, err := tracker.Signal(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- tracker.WaitUntil(3, WaitForever)
	}()

	// completing an earlier value wakes the waiter only to re-arm
	dev.fence.set(1)
	select {
	case err := <-done:
		t.Fatalf("wait returned before value 3 completed: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	dev.fence.set(3)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after value 3 completed")
	}
}

func TestWaitUntilTimeout(t *testing.T) {
	dev := newFakeDevice()
	tracker := NewFenceTracker(dev.queue, dev.fence)
	v, _ := tracker.Signal()

	err := tracker.WaitUntil(v, 10*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout; got %v", err)
	}

	// the tracker keeps working after a timeout
	dev.fence.set(uint64(v))
	if err := tracker.WaitUntil(v, 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitUntilArmFailure(t *testing.T) {
	dev := newFakeDevice()
	tracker := NewFenceTracker(dev.queue, dev.fence)
	v, _ := tracker.Signal()

	dev.fence.armErr = ErrDeviceLost
	if err := tracker.WaitUntil(v, WaitForever); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost; got %v", err)
	}
}

func TestFlushIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	dev.queue.autoComplete = true
	tracker := NewFenceTracker(dev.queue, dev.fence)

	first, err := tracker.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := tracker.Flush()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected flush values 1 and 2; got %d and %d", first, second)
	}
	if !tracker.IsComplete(second) {
		t.Fatal("expected everything to be complete after flush")
	}
}
