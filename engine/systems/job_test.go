package systems

import (
	"errors"
	"sync"
	"testing"
)

func TestJobSystemSingleWorkerKeepsOrder(t *testing.T) {
	js, err := NewJobSystem(1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		js.Submit(JobTask{
			Name: "append",
			Run: func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			},
		})
	}
	js.Shutdown()

	if len(order) != 50 {
		t.Fatalf("expected 50 jobs to run; got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected job %d at position %d; got %d", i, i, v)
		}
	}
}

func TestJobSystemCallbacks(t *testing.T) {
	js, err := NewJobSystem(2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	var failed error
	completed := false
	done := make(chan struct{}, 2)
	js.Submit(JobTask{
		Name:      "fails",
		Run:       func() error { return boom },
		OnFailure: func(err error) { failed = err; done <- struct{}{} },
	})
	js.Submit(JobTask{
		Name:       "succeeds",
		Run:        func() error { return nil },
		OnComplete: func() { completed = true; done <- struct{}{} },
	})
	<-done
	<-done
	js.Shutdown()
	// a second shutdown is a no-op
	js.Shutdown()

	if !errors.Is(failed, boom) {
		t.Fatalf("expected failure callback with boom; got %v", failed)
	}
	if !completed {
		t.Fatal("expected completion callback")
	}
}

func TestJobSystemValidation(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("expected ErrNoWorkers; got %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("expected ErrNegativeChannelSize; got %v", err)
	}
}
