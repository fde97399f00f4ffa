package containers

import "errors"

var ErrQueueEmpty = errors.New("queue is empty")

const minQueueCapacity = 8

// Queue is a FIFO backed by a ring buffer that doubles when full.
// Insertion order is removal order.
type Queue[T any] struct {
	data       []T
	readIndex  int
	writeIndex int
	count      int
}

// Create a new Queue with room for size elements before the first growth.
func NewQueue[T any](size int) *Queue[T] {
	if size < minQueueCapacity {
		size = minQueueCapacity
	}
	return &Queue[T]{
		data: make([]T, size),
	}
}

// Enqueue adds an element at the back of the queue
func (q *Queue[T]) Enqueue(value T) {
	if q.count == len(q.data) {
		q.grow()
	}
	q.data[q.writeIndex] = value
	q.writeIndex = (q.writeIndex + 1) % len(q.data)
	q.count++
}

// Dequeue removes and returns the front element in the queue
func (q *Queue[T]) Dequeue() (T, error) {
	var zero T
	if q.IsEmpty() {
		return zero, ErrQueueEmpty
	}

	value := q.data[q.readIndex]
	// release the reference so the GC can collect it
	q.data[q.readIndex] = zero
	q.readIndex = (q.readIndex + 1) % len(q.data)
	q.count--
	return value, nil
}

// Peek returns the front element without removing it
func (q *Queue[T]) Peek() (T, error) {
	if q.IsEmpty() {
		var zero T
		return zero, ErrQueueEmpty
	}
	return q.data[q.readIndex], nil
}

// Each visits the elements from front to back until fn returns false.
func (q *Queue[T]) Each(fn func(T) bool) {
	for i := 0; i < q.count; i++ {
		if !fn(q.data[(q.readIndex+i)%len(q.data)]) {
			return
		}
	}
}

func (q *Queue[T]) Len() int {
	return q.count
}

func (q *Queue[T]) IsEmpty() bool {
	return q.count == 0
}

func (q *Queue[T]) grow() {
	data := make([]T, len(q.data)*2)
	for i := 0; i < q.count; i++ {
		data[i] = q.data[(q.readIndex+i)%len(q.data)]
	}
	q.data = data
	q.readIndex = 0
	q.writeIndex = q.count
}
