// Package queue implements a bounded-concurrency task runner.
//
// Up to K tasks run at the same time. Additional tasks wait in arrival
// order and are started one by one as running tasks settle. Each caller
// receives a Future bound to its own task's outcome.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	fifo "github.com/eapache/queue"
)

// ErrPanic is wrapped by the error of a task that panicked.
var ErrPanic = errors.New("queue: task panicked")

// Queue runs enqueued tasks with a fixed concurrency limit.
type Queue struct {
	limit   int
	lck     sync.Mutex
	active  int
	waiting *fifo.Queue
}

// New returns a queue that runs at most limit tasks concurrently.
// Limits lower than one are treated as one.
func New(limit int) *Queue {
	if limit < 1 {
		limit = 1
	}
	return &Queue{
		limit:   limit,
		waiting: fifo.New(),
	}
}

// Limit returns the concurrency limit.
func (q *Queue) Limit() int {
	return q.limit
}

// Active returns the number of running tasks.
func (q *Queue) Active() int {
	q.lck.Lock()
	defer q.lck.Unlock()
	return q.active
}

// Pending returns the number of tasks waiting for a slot.
func (q *Queue) Pending() int {
	q.lck.Lock()
	defer q.lck.Unlock()
	return q.waiting.Length()
}

// Future holds the eventual outcome of an enqueued task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the task has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task settles or ctx is done.
// Returning on ctx does not withdraw the task from the queue.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Enqueue adds task to q and returns immediately. The task starts right
// away if a slot is free, otherwise it waits behind every task enqueued
// before it. ctx is handed to the task when it runs.
func Enqueue[T any](ctx context.Context, q *Queue, task func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	run := func() {
		defer q.release()
		defer close(f.done)
		f.value, f.err = call(ctx, task)
	}

	q.lck.Lock()
	if q.active < q.limit {
		q.active++
		q.lck.Unlock()
		go run()
		return f
	}
	q.waiting.Add(run)
	q.lck.Unlock()
	return f
}

// Do enqueues task and waits for its outcome.
func Do[T any](ctx context.Context, q *Queue, task func(context.Context) (T, error)) (T, error) {
	return Enqueue(ctx, q, task).Wait(ctx)
}

func call[T any](ctx context.Context, task func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return task(ctx)
}

// release frees the slot of a settled task and starts the oldest waiting
// task, if any.
func (q *Queue) release() {
	q.lck.Lock()
	q.active--
	if q.waiting.Length() == 0 || q.active >= q.limit {
		q.lck.Unlock()
		return
	}
	next := q.waiting.Remove().(func())
	q.active++
	q.lck.Unlock()
	go next()
}
