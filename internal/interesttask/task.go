// Package interesttask periodically applies interest to every account.
package interesttask

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// Applier provides the interest operation needed by the task.
type Applier interface {
	ApplyInterest(ctx context.Context, rate float64) error
}

// schedule is replaced as a whole so a setter never leaves a half-written value.
type schedule struct {
	rate   float64
	period time.Duration
}

// Task re-applies interest at a rate and period that can be changed while it runs.
// A rate change applies at the end of the current sleep, a period change from the
// next sleep.
type Task struct {
	applier Applier
	log     zerolog.Logger

	mu      sync.Mutex // serializes setters
	current atomic.Pointer[schedule]

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New returns a task that is not yet running.
func New(applier Applier, rate float64, period time.Duration, logger zerolog.Logger) (*Task, error) {
	if applier == nil || !validRate(rate) || period <= 0 {
		return nil, errorspkg.ErrInvalidArgument
	}

	t := &Task{
		applier: applier,
		log:     logger.With().Str("component", "interest").Logger(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	t.current.Store(&schedule{rate: rate, period: period})

	return t, nil
}

func validRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate > 0
}

// Rate returns the current interest rate.
func (t *Task) Rate() float64 {
	return t.current.Load().rate
}

// Period returns the current interval between applications.
func (t *Task) Period() time.Duration {
	return t.current.Load().period
}

// SetRate changes the rate used from the next iteration on.
func (t *Task) SetRate(rate float64) error {
	if !validRate(rate) {
		return errorspkg.ErrInvalidArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := *t.current.Load()
	s.rate = rate
	t.current.Store(&s)

	t.log.Info().Float64("rate", rate).Msg("Interest rate changed")

	return nil
}

// SetPeriod changes the interval used from the next iteration on.
func (t *Task) SetPeriod(period time.Duration) error {
	if period <= 0 {
		return errorspkg.ErrInvalidArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := *t.current.Load()
	s.period = period
	t.current.Store(&s)

	t.log.Info().Dur("period", period).Msg("Interest period changed")

	return nil
}

// Run loops until Stop is called or ctx is done: sleep for the current period,
// then apply interest at the rate current when the sleep ends. A period change
// takes effect from the next sleep. Errors from the applier are logged and the
// loop goes on.
func (t *Task) Run(ctx context.Context) {
	defer close(t.done)

	ctx = t.log.WithContext(ctx)

	t.log.Info().Msg("Interest task started")
	defer t.log.Info().Msg("Interest task stopped")

	for {
		timer := time.NewTimer(t.current.Load().period)

		select {
		case <-t.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		select {
		case <-t.stop:
			return
		default:
		}

		rate := t.current.Load().rate

		t.log.Debug().Float64("rate", rate).Msg("Applying interest")

		if err := t.applier.ApplyInterest(ctx, rate); err != nil {
			t.log.Error().Err(err).Float64("rate", rate).Msg("Applying interest failed")
		}
	}
}

// Start runs the task on its own goroutine.
func (t *Task) Start(ctx context.Context) {
	go t.Run(ctx)
}

// Stop asks the loop to exit. An application already in progress completes.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
