// Package taskpool runs submitted units of work on a fixed number of workers.
package taskpool

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// Task is a unit of work, typically one client session.
type Task func()

// entry is a queued task and the cleanup to run if it is dropped unstarted.
type entry struct {
	run  Task
	drop func()
}

// Pool drains a single unbounded queue with a fixed set of worker goroutines.
type Pool struct {
	log zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []entry
	running bool

	wg sync.WaitGroup
}

// New starts a pool with size workers.
func New(size int, logger zerolog.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, errorspkg.ErrInvalidArgument
	}

	p := &Pool{
		log:     logger.With().Str("component", "taskpool").Logger(),
		running: true,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		p.wg.Add(1)

		go p.worker(i)
	}

	p.log.Info().Int("workers", size).Msg("Task pool started")

	return p, nil
}

// Submit enqueues task. It never blocks on a busy pool.
func (p *Pool) Submit(task Task) error {
	return p.SubmitWithDrop(task, nil)
}

// SubmitWithDrop enqueues task like Submit. If Shutdown removes the task from the
// queue before a worker starts it, drop is called instead.
func (p *Pool) SubmitWithDrop(task Task, drop func()) error {
	if task == nil {
		return errorspkg.ErrInvalidArgument
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return errorspkg.ErrNotRunning
	}

	p.queue = append(p.queue, entry{run: task, drop: drop})
	p.cond.Signal()

	return nil
}

// Pending returns the number of queued tasks not yet picked by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queue)
}

// Shutdown stops accepting work and tells the workers to exit.
//
// Tasks already running are left to finish; queued tasks that have not started
// are dropped and their drop functions run on the calling goroutine. Calling
// Shutdown more than once is safe.
func (p *Pool) Shutdown() {
	p.mu.Lock()

	if !p.running {
		p.mu.Unlock()
		return
	}

	p.running = false
	dropped := p.queue
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	p.log.Info().Int("dropped", len(dropped)).Msg("Task pool shutting down")

	for _, e := range dropped {
		if e.drop != nil {
			p.safely("drop", e.drop)
		}
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		task, ok := p.next()
		if !ok {
			p.log.Debug().Int("worker", id).Msg("Worker stopped")
			return
		}

		p.safely("task", task)
	}
}

// next blocks until a task is available or the pool stops.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.running && len(p.queue) == 0 {
		p.cond.Wait()
	}

	if !p.running {
		return nil, false
	}

	e := p.queue[0]
	p.queue[0] = entry{}
	p.queue = p.queue[1:]

	return e.run, true
}

// safely runs fn and logs a panic instead of propagating it.
func (p *Pool) safely(kind string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			p.log.Error().
				Str("kind", kind).
				Str("panic", fmt.Sprint(v)).
				Msg("Task panicked")
		}
	}()

	fn()
}
