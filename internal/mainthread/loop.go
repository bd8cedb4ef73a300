// Package mainthread runs functions on one designated OS thread.
//
// Window-system objects have thread affinity: they must be created, used
// and destroyed on the thread that owns the window system. A [Loop] owns
// such a thread and executes queued functions on it in FIFO order.
package mainthread

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when work is dispatched to a closed loop.
var ErrClosed = errors.New("mainthread: loop closed")

type funcRun struct {
	f    func()
	done chan any
}

// Loop is a FIFO queue of functions executed on a single locked OS thread.
type Loop struct {
	queue   chan funcRun
	quit    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	once    sync.Once

	executed atomic.Int64
}

// NewLoop creates a loop that is not yet running. Run or Start must be
// called before work is dispatched.
func NewLoop() *Loop {
	return &Loop{
		queue:   make(chan funcRun, 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start creates a loop serviced by a new goroutine locked to its OS thread.
func Start() *Loop {
	l := NewLoop()
	ready := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		close(ready)
		l.Run()
	}()
	<-ready
	return l
}

// Run services the queue on the calling goroutine until Close is called.
// Call it from main (after runtime.LockOSThread in an init function) to make
// the process main thread the owner.
func (l *Loop) Run() {
	defer close(l.stopped)
	for {
		select {
		case fr := <-l.queue:
			l.exec(fr)
		case <-l.quit:
			for {
				select {
				case fr := <-l.queue:
					l.exec(fr)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) exec(fr funcRun) {
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fr.f()
	}()
	l.executed.Add(1)
	if fr.done != nil {
		fr.done <- recovered
	} else if recovered != nil {
		panic(recovered)
	}
}

// RunOnMain runs f on the loop thread and blocks until it returns.
// A panic in f is re-raised on the calling goroutine.
//
// RunOnMain must not be called from the loop thread itself.
func (l *Loop) RunOnMain(f func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	done := make(chan any, 1)
	select {
	case l.queue <- funcRun{f: f, done: done}:
	case <-l.stopped:
		return ErrClosed
	}
	select {
	case r := <-done:
		if r != nil {
			panic(r)
		}
		return nil
	case <-l.stopped:
		// The loop may have executed f during its final drain.
		select {
		case r := <-done:
			if r != nil {
				panic(r)
			}
			return nil
		default:
			return ErrClosed
		}
	}
}

// Post queues f without waiting for it.
func (l *Loop) Post(f func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	select {
	case l.queue <- funcRun{f: f}:
		return nil
	case <-l.stopped:
		return ErrClosed
	}
}

// Drain blocks until every function queued before the call has run.
func (l *Loop) Drain() error {
	return l.RunOnMain(func() {})
}

// Dispatch drains pending work, runs f on the loop thread, then drains
// again, returning f's error. From the caller's side it is synchronous.
func (l *Loop) Dispatch(f func() error) error {
	if err := l.Drain(); err != nil {
		return err
	}
	var ferr error
	if err := l.RunOnMain(func() { ferr = f() }); err != nil {
		return err
	}
	if err := l.Drain(); err != nil {
		return fmt.Errorf("mainthread: drain after dispatch: %w", err)
	}
	return ferr
}

// Executed returns the number of functions run so far.
func (l *Loop) Executed() int64 {
	return l.executed.Load()
}

// Close stops the loop after queued work has run and waits for it to exit.
// Close is safe to call more than once. The loop must be running.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.quit)
	})
	<-l.stopped
}
