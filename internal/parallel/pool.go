// Package parallel provides the worker pool used to record command buffers
// concurrently.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when work is handed to a closed pool.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Pool is a fixed set of recording goroutines.
//
// Each worker owns a queue and steals from its siblings when its own queue
// is empty, so one slow recording job does not hold back the rest of a batch.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	executed atomic.Int64
}

// NewPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	depth := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.loop(i)
	}
	return p
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			p.exec(job)
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			p.exec(job)
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			p.exec(job)
		}
	}
}

func (p *Pool) exec(job func()) {
	if job == nil {
		return
	}
	job()
	p.executed.Add(1)
}

func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			p.exec(job)
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Run executes every job on the pool and waits for all of them.
//
// A panicking job is converted into an error for that job. The returned
// error joins the errors of all failed jobs, each prefixed with its index.
// Run must not be called concurrently with Close.
func (p *Pool) Run(jobs []func() error) error {
	if len(jobs) == 0 {
		return nil
	}
	if !p.running.Load() {
		return ErrPoolClosed
	}

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	for i, job := range jobs {
		wrapped := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("job %d: panic: %v", i, r)
				}
			}()
			if err := job(); err != nil {
				errs[i] = fmt.Errorf("job %d: %w", i, err)
			}
		}

		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			for j := i; j < len(jobs); j++ {
				errs[j] = ErrPoolClosed
				wg.Done()
			}
			wg.Wait()
			return errors.Join(errs...)
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Close stops the pool after queued jobs finish. It is safe to call more
// than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Executed returns the number of jobs run since the pool started.
func (p *Pool) Executed() int64 {
	return p.executed.Load()
}
