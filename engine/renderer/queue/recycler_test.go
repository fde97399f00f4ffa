package queue

import (
	"testing"
)

func TestRecyclerReusesRetiredAllocators(t *testing.T) {
	dev := newFakeDevice()
	q, err := New(dev, Direct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// empty pool: a fresh allocator and list
	ctx1, err := q.GetRecordingContext()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx1.Reused {
		t.Fatal("expected a freshly created allocator")
	}
	v1, err := q.Submit(ctx1)
	if err != nil || v1 != 1 {
		t.Fatalf("expected fence value 1; got %d (%v)", v1, err)
	}

	// fence 1 pending: another fresh allocator, the list is reused
	ctx2, err := q.GetRecordingContext()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx2.Reused || ctx2.AllocatorID() == ctx1.AllocatorID() {
		t.Fatal("expected a new allocator while fence 1 is pending")
	}
	if ctx2.ListID() != ctx1.ListID() {
		t.Fatal("expected the pooled command list to be reused")
	}
	v2, err := q.Submit(ctx2)
	if err != nil || v2 != 2 {
		t.Fatalf("expected fence value 2; got %d (%v)", v2, err)
	}

	// fence 1 done: the first allocator comes back, reset
	dev.fence.set(1)
	ctx3, err := q.GetRecordingContext()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx3.Reused || ctx3.RetiredAt != 1 || ctx3.AllocatorID() != ctx1.AllocatorID() {
		t.Fatalf("expected allocator retired at 1 to be reused; got reused=%v retiredAt=%d", ctx3.Reused, ctx3.RetiredAt)
	}
	if dev.allocators[0].resets != 1 {
		t.Fatalf("expected the reused allocator to be reset once; got %d", dev.allocators[0].resets)
	}

	s := q.Stats()
	if s.AllocatorsCreated != 2 || s.AllocatorsReused != 1 {
		t.Fatalf("expected 2 created / 1 reused allocators; got %d / %d", s.AllocatorsCreated, s.AllocatorsReused)
	}
	if s.ListsCreated != 1 || s.ListsReused != 2 {
		t.Fatalf("expected 1 created / 2 reused lists; got %d / %d", s.ListsCreated, s.ListsReused)
	}
}

func TestRecyclerNeverReordersPendingAllocators(t *testing.T) {
	dev := newFakeDevice()
	q, _ := New(dev, Direct)

	v1, _, err := submitEmpty(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a discarded context retires immediately but sits behind fence 1
	ctx, _ := q.GetRecordingContext()
	if err := q.Discard(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := q.recycler.PendingFences(); len(got) != 2 || got[0] != v1 || got[1] != 0 {
		t.Fatalf("expected pending fences [%d 0]; got %v", v1, got)
	}

	next, err := q.GetRecordingContext()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Reused {
		t.Fatal("expected a new allocator while the front entry is pending")
	}
	if q.recycler.Pending() != 2 {
		t.Fatalf("expected both entries to stay queued; got %d", q.recycler.Pending())
	}
}

func TestRecyclerFIFOOrder(t *testing.T) {
	dev := newFakeDevice()
	q, _ := New(dev, Copy)

	var ids []string
	for i := 0; i < 4; i++ {
		ctx, err := q.GetRecordingContext()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, ctx.AllocatorID().String())
		if _, err := q.Submit(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	dev.fence.set(4)

	for i := 0; i < 4; i++ {
		ctx, err := q.GetRecordingContext()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ctx.AllocatorID().String(); got != ids[i] {
			t.Fatalf("[spec %d] expected allocator %s; got %s", i, ids[i], got)
		}
		if ctx.RetiredAt != FenceValue(i+1) {
			t.Fatalf("[spec %d] expected retirement fence %d; got %d", i, i+1, ctx.RetiredAt)
		}
		if _, err := q.Submit(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
