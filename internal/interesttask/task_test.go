package interesttask

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

type fakeApplier struct {
	mu    sync.Mutex
	rates []float64
	err   error
	calls chan float64
}

func newFakeApplier(err error) *fakeApplier {
	return &fakeApplier{err: err, calls: make(chan float64, 100)}
}

func (f *fakeApplier) ApplyInterest(ctx context.Context, rate float64) error {
	f.mu.Lock()
	f.rates = append(f.rates, rate)
	f.mu.Unlock()

	f.calls <- rate

	return f.err
}

func waitCall(t *testing.T, f *fakeApplier) float64 {
	t.Helper()

	select {
	case rate := <-f.calls:
		return rate
	case <-time.After(5 * time.Second):
		t.Fatal("interest was not applied in time")
	}

	return 0
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("interest task did not stop")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier(nil)

	testCases := []struct {
		name    string
		applier Applier
		rate    float64
		period  time.Duration
	}{
		{name: "NilApplier", applier: nil, rate: 0.1, period: time.Second},
		{name: "ZeroRate", applier: applier, rate: 0, period: time.Second},
		{name: "NegativeRate", applier: applier, rate: -0.1, period: time.Second},
		{name: "ZeroPeriod", applier: applier, rate: 0.1, period: 0},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			task, err := New(tc.applier, tc.rate, tc.period, zerolog.Nop())
			require.ErrorIs(t, err, errorspkg.ErrInvalidArgument)
			require.Nil(t, task)
		})
	}
}

func TestSetters(t *testing.T) {
	t.Parallel()

	task, err := New(newFakeApplier(nil), 0.025, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, task.SetRate(0.05))
	require.Equal(t, 0.05, task.Rate())

	require.NoError(t, task.SetPeriod(time.Second))
	require.Equal(t, time.Second, task.Period())

	require.ErrorIs(t, task.SetRate(0), errorspkg.ErrInvalidArgument)
	require.ErrorIs(t, task.SetPeriod(-time.Second), errorspkg.ErrInvalidArgument)

	require.Equal(t, 0.05, task.Rate())
	require.Equal(t, time.Second, task.Period())
}

func TestRunAppliesCurrentRate(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier(nil)

	task, err := New(applier, 0.1, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	task.Start(context.Background())

	require.Equal(t, 0.1, waitCall(t, applier))

	require.NoError(t, task.SetRate(0.2))

	for waitCall(t, applier) != 0.2 {
	}

	task.Stop()
	waitDone(t, task)
}

func TestRateChangeDuringSleepAppliesAtWake(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier(nil)

	task, err := New(applier, 0.1, 300*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	task.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, task.SetRate(0.5))

	require.Equal(t, 0.5, waitCall(t, applier))

	task.Stop()
	waitDone(t, task)
}

func TestPeriodChangeWaitsForNextSleep(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier(nil)

	task, err := New(applier, 0.1, 300*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	task.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, task.SetPeriod(time.Hour))

	// The sleep already armed keeps its period.
	require.Equal(t, 0.1, waitCall(t, applier))

	task.Stop()
	waitDone(t, task)

	applier.mu.Lock()
	defer applier.mu.Unlock()
	require.Len(t, applier.rates, 1)
}

func TestRunContinuesAfterError(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier(errors.New("interest failed"))

	task, err := New(applier, 0.1, 5*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	task.Start(context.Background())

	for i := 0; i < 3; i++ {
		waitCall(t, applier)
	}

	task.Stop()
	waitDone(t, task)
}

func TestStopDuringSleep(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier(nil)

	task, err := New(applier, 0.1, time.Hour, zerolog.Nop())
	require.NoError(t, err)

	task.Start(context.Background())
	task.Stop()
	task.Stop()

	waitDone(t, task)

	applier.mu.Lock()
	defer applier.mu.Unlock()
	require.Empty(t, applier.rates)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	task, err := New(newFakeApplier(nil), 0.1, time.Hour, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	task.Start(ctx)
	cancel()

	waitDone(t, task)
}
