package containers

import (
	"errors"
	"testing"
)

func TestQueueFIFOAcrossGrowth(t *testing.T) {
	q := NewQueue[int](2)

	// interleave so the read index wraps before growing
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < 3; i++ {
		v, err := q.Dequeue()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != i {
			t.Fatalf("expected %d; got %d", i, v)
		}
	}
	for i := 5; i < 40; i++ {
		q.Enqueue(i)
	}

	if q.Len() != 37 {
		t.Fatalf("expected len 37; got %d", q.Len())
	}
	for want := 3; want < 40; want++ {
		front, _ := q.Peek()
		v, err := q.Dequeue()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != want || front != want {
			t.Fatalf("expected %d; got dequeue %d peek %d", want, v, front)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("expected queue to be empty")
	}
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue[string](0)

	if _, err := q.Peek(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty from Peek; got %v", err)
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty from Dequeue; got %v", err)
	}
}

func TestQueueEach(t *testing.T) {
	q := NewQueue[int](4)
	for i := 1; i <= 6; i++ {
		q.Enqueue(i)
	}
	_, _ = q.Dequeue()

	var seen []int
	q.Each(func(v int) bool {
		seen = append(seen, v)
		return v < 4
	})

	expected := []int{2, 3, 4}
	if len(seen) != len(expected) {
		t.Fatalf("expected %v; got %v", expected, seen)
	}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Fatalf("expected %v; got %v", expected, seen)
		}
	}
}
