// Package loop provides the single-threaded cooperative executor that
// defines a scheduling quantum.
//
// A quantum is one task received from the loop's channel plus every callback
// deferred while running it, including callbacks deferred by those callbacks.
// The deferred queue is always empty before the next task is received, so
// work deferred during one logical update runs after the update's call stack
// unwinds and before the next external event is seen.
package loop

import (
	"context"
	"errors"
	"sync"
)

// Loop errors.
var (
	// ErrStopped indicates the loop no longer accepts tasks.
	ErrStopped = errors.New("loop stopped")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("loop already running")
)

// DefaultBufferSize is the capacity of the task channel.
const DefaultBufferSize = 100

// Task is a unit of work posted to the loop. A non-nil error stops the loop.
type Task func() error

// Deferrer schedules a callback for the end of the current quantum.
type Deferrer interface {
	Defer(fn func())
}

// Queue is a FIFO of deferred callbacks. It is not safe for concurrent use.
type Queue struct {
	tasks []func()
}

var _ Deferrer = (*Queue)(nil)

// Defer appends fn to the queue.
func (q *Queue) Defer(fn func()) {
	if fn == nil {
		return
	}
	q.tasks = append(q.tasks, fn)
}

// Len returns the number of queued callbacks.
func (q *Queue) Len() int { return len(q.tasks) }

// Drain runs queued callbacks in order until the queue is empty, including
// callbacks queued while draining. It returns the number of callbacks run.
func (q *Queue) Drain() int {
	n := 0
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		fn()
		n++
	}
	q.tasks = nil
	return n
}

// Loop receives tasks from any goroutine and runs them one at a time on the
// goroutine that called Run, draining deferred callbacks after each.
type Loop struct {
	tasks chan Task
	queue Queue

	mu      sync.Mutex
	running bool
	stopped bool
	err     error
	done    chan struct{}
	once    sync.Once
}

var _ Deferrer = (*Loop)(nil)

// Option configures a Loop.
type Option func(*Loop)

// WithBufferSize sets the task channel capacity.
func WithBufferSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.tasks = make(chan Task, n)
		}
	}
}

// New creates a loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks: make(chan Task, DefaultBufferSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues a task. It blocks while the channel is full and returns
// false if the loop has stopped.
func (l *Loop) Post(t Task) bool {
	if t == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- t:
		return true
	case <-l.done:
		return false
	}
}

// Defer queues fn for the end of the current quantum.
// It must only be called from the loop goroutine, or before Run starts.
func (l *Loop) Defer(fn func()) {
	l.queue.Defer(fn)
}

// Drain runs all deferred callbacks now. Run calls it after every task;
// callers use it to flush work queued before Run starts.
func (l *Loop) Drain() int {
	return l.queue.Drain()
}

// Run processes tasks until the context is cancelled, Stop is called, or a
// task returns an error. Deferred callbacks queued before Run are drained
// first.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	l.queue.Drain()

	for {
		select {
		case <-l.done:
			return l.Err()
		default:
		}

		select {
		case <-ctx.Done():
			l.Stop(nil)
			return l.Err()
		case <-l.done:
			return l.Err()
		case t := <-l.tasks:
			if err := t(); err != nil {
				l.queue.Drain()
				l.Stop(err)
				return l.Err()
			}
			l.queue.Drain()
		}
	}
}

// Stop stops the loop. The first non-nil error passed to Stop is returned
// by Run and Err.
func (l *Loop) Stop(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.stopped = true
	l.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

// Done returns a channel closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the error that stopped the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
