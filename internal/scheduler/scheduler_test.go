// FilePath: server/watchdog/internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	name string
	err  error
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (r *fakeRecorder) JobCompleted(name string, _ time.Duration, err error) {
	r.mu.Lock()
	r.runs = append(r.runs, recordedRun{name: name, err: err})
	r.mu.Unlock()
}

func (r *fakeRecorder) failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, run := range r.runs {
		if run.err != nil {
			n++
		}
	}
	return n
}

func runAsync(t *testing.T, s *Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return cancel, done
}

func TestAddRejectsInvalidJobs(t *testing.T) {
	s := New()
	noop := func(context.Context, time.Time) error { return nil }

	assert.ErrorIs(t, s.Add(Job{Interval: time.Second, Run: noop}), ErrInvalidJob)
	assert.ErrorIs(t, s.Add(Job{Name: "x", Run: noop}), ErrInvalidJob)
	assert.ErrorIs(t, s.Add(Job{Name: "x", Interval: time.Second}), ErrInvalidJob)
	assert.NoError(t, s.Add(Job{Name: "x", Interval: time.Second, Run: noop}))
}

func TestJobRunsRepeatedly(t *testing.T) {
	var runs atomic.Int32
	s := New()
	require.NoError(t, s.Add(Job{
		Name:           "count",
		Interval:       5 * time.Millisecond,
		RunImmediately: true,
		Run: func(context.Context, time.Time) error {
			runs.Add(1)
			return nil
		},
	}))

	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestJobNeverOverlapsItself(t *testing.T) {
	var inFlight, maxInFlight, runs atomic.Int32
	s := New()
	require.NoError(t, s.Add(Job{
		Name:     "slow",
		Interval: time.Millisecond,
		Run: func(context.Context, time.Time) error {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			runs.Add(1)
			return nil
		},
	}))

	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return runs.Load() >= 5 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestPanicAndErrorDoNotStopJob(t *testing.T) {
	var runs atomic.Int32
	rec := &fakeRecorder{}
	s := New(WithRecorder(rec))
	require.NoError(t, s.Add(Job{
		Name:     "flaky",
		Interval: 2 * time.Millisecond,
		Run: func(context.Context, time.Time) error {
			switch runs.Add(1) {
			case 1:
				panic("boom")
			case 2:
				return errors.New("transient")
			}
			return nil
		},
	}))

	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool { return runs.Load() >= 4 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, rec.failures())
}

func TestRunWaitsForInFlightJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished, runs atomic.Int32
	s := New()
	require.NoError(t, s.Add(Job{
		Name:           "blocking",
		Interval:       time.Millisecond,
		RunImmediately: true,
		Run: func(ctx context.Context, _ time.Time) error {
			if runs.Add(1) > 1 {
				return nil
			}
			close(started)
			<-release
			assert.NoError(t, ctx.Err(), "run context must survive shutdown")
			finished.Add(1)
			return nil
		},
	}))

	cancel, done := runAsync(t, s)
	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before the in-flight job finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, int32(1), finished.Load())
	assert.Equal(t, int32(1), runs.Load(), "no run may start after cancellation")
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestJobReceivesClockTime(t *testing.T) {
	at := time.Date(2024, 2, 2, 2, 2, 0, 0, time.UTC)
	got := make(chan time.Time, 1)
	s := New(WithClock(fixedClock{at: at}))
	require.NoError(t, s.Add(Job{
		Name:           "clock",
		Interval:       time.Hour,
		RunImmediately: true,
		Run: func(_ context.Context, now time.Time) error {
			select {
			case got <- now:
			default:
			}
			return nil
		},
	}))

	cancel, done := runAsync(t, s)
	assert.Equal(t, at, <-got)
	cancel()
	require.NoError(t, <-done)
}

func TestRunTwiceFails(t *testing.T) {
	s := New()
	cancel, done := runAsync(t, s)
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)
	assert.ErrorIs(t, s.Add(Job{Name: "late", Interval: time.Second, Run: func(context.Context, time.Time) error { return nil }}), ErrAlreadyRunning)
	cancel()
	require.NoError(t, <-done)
}
