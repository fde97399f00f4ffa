package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/cadence/engine/core"
)

// JobTask is a unit of work. OnFailure runs when Run returns an error,
// OnComplete runs otherwise.
type JobTask struct {
	Name       string
	Run        func() error
	OnComplete func()
	OnFailure  func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

// NewJobSystem starts numWorkers goroutines. A single worker runs jobs in
// submission order.
func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				if err := job.Run(); err != nil {
					core.LogError("job %s failed: %s", job.Name, err)
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
					continue
				}
				if job.OnComplete != nil {
					job.OnComplete()
				}
			}
		}()
	}
}

// Shutdown stops accepting work and waits for queued jobs to drain.
func (js *JobSystem) Shutdown() {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
}

// Submit queues the job, blocking while the channel is full.
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}
