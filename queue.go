package kgs

import (
	"sync"
)

// CommandQueue is an in-order queue of device commands. Commands submitted
// to the same queue execute sequentially in submission order, matching the
// in-order execution model of a device command queue. A single worker
// goroutine drains the queue.
type CommandQueue struct {
	tasks chan func() error
	done  chan struct{}
	wg    sync.WaitGroup

	mu  sync.Mutex
	err error // first command failure since the last Finish
}

func newCommandQueue() *CommandQueue {
	q := &CommandQueue{
		tasks: make(chan func() error, 64),
		done:  make(chan struct{}),
	}
	go q.worker()
	return q
}

// worker processes commands for the queue
func (q *CommandQueue) worker() {
	for task := range q.tasks {
		if err := task(); err != nil {
			q.mu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
		}
		q.wg.Done()
	}
	close(q.done)
}

// Submit adds a command to the queue
func (q *CommandQueue) Submit(task func() error) {
	q.wg.Add(1)
	q.tasks <- task
}

// Finish blocks until every submitted command has completed and returns
// the first command failure observed since the previous Finish.
func (q *CommandQueue) Finish() error {
	q.wg.Wait()
	q.mu.Lock()
	err := q.err
	q.err = nil
	q.mu.Unlock()
	return err
}

// Release drains the queue and stops its worker. The queue must not be
// used afterwards.
func (q *CommandQueue) Release() {
	q.wg.Wait()
	close(q.tasks)
	<-q.done
}
