package queue

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubmitReturnsIncreasingFenceValues(t *testing.T) {
	dev := newFakeDevice()
	q, err := New(dev, Direct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i <= 5; i++ {
		v, ctx, err := submitEmpty(q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != FenceValue(i) {
			t.Fatalf("expected fence value %d; got %d", i, v)
		}
		if ctx.State() != ContextSubmitted {
			t.Fatalf("expected submitted context; got %s", ctx.State())
		}
		// every submission got its own allocator since nothing completed
		dev.fence.set(uint64(i))
	}
	if dev.queue.executed != 5 {
		t.Fatalf("expected 5 executed lists; got %d", dev.queue.executed)
	}
}

func TestSubmitRejectsInvalidContexts(t *testing.T) {
	dev := newFakeDevice()
	q, _ := New(dev, Direct)
	other, _ := New(newFakeDevice(), Direct)

	type spec struct {
		ctx func() *RecordingContext
		err error
	}

	specs := []spec{
		{func() *RecordingContext { return nil }, ErrNotRecording},
		{func() *RecordingContext {
			_, ctx, _ := submitEmpty(q)
			return ctx
		}, ErrNotRecording},
		{func() *RecordingContext {
			ctx, _ := q.GetRecordingContext()
			_ = q.Discard(ctx)
			return ctx
		}, ErrNotRecording},
		{func() *RecordingContext {
			ctx, _ := other.GetRecordingContext()
			return ctx
		}, ErrForeignContext},
	}

	for index, s := range specs {
		if _, err := q.Submit(s.ctx()); !errors.Is(err, s.err) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.err, err)
		}
	}

	// none of the above is fatal
	if _, _, err := submitEmpty(q); err != nil {
		t.Fatalf("expected queue to stay usable; got %v", err)
	}
}

func TestDeviceLossIsSticky(t *testing.T) {
	dev := newFakeDevice()
	q, _ := New(dev, Direct)

	if _, _, err := submitEmpty(q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dev.queue.signalErr = errors.New("hung")
	if _, _, err := submitEmpty(q); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost; got %v", err)
	}

	// the hardware recovering does not bring the queue back
	dev.queue.signalErr = nil
	if _, err := q.GetRecordingContext(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost from acquire; got %v", err)
	}
	if _, err := q.Signal(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost from signal; got %v", err)
	}
	if err := q.WaitForFenceValue(1); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost from wait; got %v", err)
	}
	if err := q.Flush(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected ErrDeviceLost from flush; got %v", err)
	}
}

func TestWaitTimeoutIsNotFatal(t *testing.T) {
	dev := newFakeDevice()
	q, _ := New(dev, Compute)

	v, _, err := submitEmpty(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.WaitForFenceValueTimeout(v, 5*time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout; got %v", err)
	}
	if q.IsFenceComplete(v) {
		t.Fatal("expected fence to be pending")
	}

	dev.fence.set(uint64(v))
	if err := q.WaitForFenceValue(v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := q.Stats()
	if s.Timeouts != 1 || s.Waits != 2 || s.WaitsSatisfied != 1 {
		t.Fatalf("unexpected wait stats %+v", s)
	}
}

func TestFlushWaitsForEverything(t *testing.T) {
	dev := newFakeDevice()
	dev.queue.autoComplete = true
	q, _ := New(dev, Direct)

	var last FenceValue
	for i := 0; i < 3; i++ {
		v, _, err := submitEmpty(q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = v
	}
	for i := 0; i < 2; i++ {
		if err := q.Flush(); err != nil {
			t.Fatalf("flush %d: unexpected error: %v", i, err)
		}
	}
	if !q.IsFenceComplete(last) {
		t.Fatal("expected submitted work to be complete after flush")
	}
	if q.LastSignaled() != 5 {
		t.Fatalf("expected 5 signals; got %d", q.LastSignaled())
	}
}

func TestCloseRefusesWork(t *testing.T) {
	dev := newFakeDevice()
	dev.queue.autoComplete = true
	q, _ := New(dev, Copy)

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("expected a second close to be a no-op; got %v", err)
	}
	if _, err := q.GetRecordingContext(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed; got %v", err)
	}
}

func TestConcurrentSubmitsGetUniqueValues(t *testing.T) {
	dev := newFakeDevice()
	dev.queue.autoComplete = true
	q, _ := New(dev, Direct)

	const workers, perWorker = 4, 25
	var mu sync.Mutex
	seen := make(map[FenceValue]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v, _, err := submitEmpty(q)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for v := FenceValue(1); v <= workers*perWorker; v++ {
		if !seen[v] {
			t.Fatalf("fence value %d was never handed out", v)
		}
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, Direct); !errors.Is(err, ErrNilDevice) {
		t.Fatalf("expected ErrNilDevice; got %v", err)
	}
	if _, err := New(newFakeDevice(), ListType(7)); !errors.Is(err, ErrUnknownListType) {
		t.Fatalf("expected ErrUnknownListType; got %v", err)
	}
}

func TestStatsTable(t *testing.T) {
	dev := newFakeDevice()
	dev.queue.autoComplete = true
	q, _ := New(dev, Direct)
	_, _, _ = submitEmpty(q)

	table := q.Stats().Table()
	for _, want := range []string{"Submissions", "Allocators created", "direct queue", "fence 1 / 1"} {
		if !strings.Contains(table, want) {
			t.Fatalf("expected table to contain %q; got\n%s", want, table)
		}
	}
}

func TestTimedWaitBehindUnboundedWait(t *testing.T) {
	dev := newFakeDevice()
	q, _ := New(dev, Direct)

	first, _, _ := submitEmpty(q)
	second, _, _ := submitEmpty(q)

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForFenceValue(second)
	}()
	// let the unbounded wait park on the fence
	for q.Stats().Waits == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)

	start := time.Now()
	err := q.WaitForFenceValueTimeout(first, 10*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout; got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected timed wait to honor its deadline; returned after %s", elapsed)
	}

	// completing the earlier value releases its waiter only
	result := make(chan error, 1)
	go func() {
		result <- q.WaitForFenceValueTimeout(first, time.Second)
	}()
	time.Sleep(5 * time.Millisecond)
	dev.fence.set(uint64(first))
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait for the completed value did not return")
	}
	select {
	case err := <-done:
		t.Fatalf("expected the wait for value %d to keep blocking; got %v", second, err)
	default:
	}

	dev.fence.set(uint64(second))
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("unbounded wait did not return")
	}
}

func TestDiscardRefusedWhenUnusable(t *testing.T) {
	type spec struct {
		name    string
		disable func(q *CommandQueue, dev *fakeDevice)
		exp     error
	}
	specs := []spec{
		{"closed", func(q *CommandQueue, dev *fakeDevice) {
			dev.queue.autoComplete = true
			_ = q.Close()
		}, ErrClosed},
		{"lost", func(q *CommandQueue, dev *fakeDevice) {
			dev.queue.signalErr = ErrDeviceLost
			_, _ = q.Signal()
		}, ErrDeviceLost},
	}

	for specIndex, spec := range specs {
		dev := newFakeDevice()
		q, _ := New(dev, Direct)
		ctx, err := q.GetRecordingContext()
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}
		spec.disable(q, dev)

		if err := q.Discard(ctx); !errors.Is(err, spec.exp) {
			t.Fatalf("[spec %d] %s: expected %v; got %v", specIndex, spec.name, spec.exp, err)
		}
		if got := q.Stats().Discards; got != 0 {
			t.Fatalf("[spec %d] %s: expected no discards; got %d", specIndex, spec.name, got)
		}
	}
}
