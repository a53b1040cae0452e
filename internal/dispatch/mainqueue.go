// Package dispatch provides the serial main scheduling context that completion
// callbacks and surface signals are delivered on.
package dispatch

import (
	"sync"

	"github.com/julianstephens/prayanswer/internal/logger"
)

// MainQueue runs posted functions one at a time, in posting order, on a single
// goroutine. Post never blocks, so queued tasks may post more work.
type MainQueue struct {
	mu      sync.Mutex
	closed  bool
	pending []func()
	wake    chan struct{}
	done    chan struct{}
}

func NewMainQueue() *MainQueue {
	q := &MainQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *MainQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		q.run(fn)
	}
}

func (q *MainQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MainQueue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Main queue task panicked", "panic", r)
		}
	}()
	fn()
}

// Post enqueues fn. It returns false once the queue is closed.
// Tasks must not Post and then wait on the result from within the queue.
func (q *MainQueue) Post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	q.signal()
	return true
}

// Sync posts fn and blocks until it has run.
func (q *MainQueue) Sync(fn func()) bool {
	ran := make(chan struct{})
	if !q.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	<-ran
	return true
}

// Close stops accepting work and waits for queued tasks to finish.
func (q *MainQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	<-q.done
}
