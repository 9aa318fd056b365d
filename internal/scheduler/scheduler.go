// FilePath: server/watchdog/internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("scheduler: already running")
	// ErrInvalidJob is returned for jobs without a name, interval or function.
	ErrInvalidJob = errors.New("scheduler: invalid job")
)

// Job is a periodic task. A job never overlaps with itself; a run that takes
// longer than Interval delays the next one.
type Job struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
	Run            func(ctx context.Context, now time.Time) error
}

// Clock provides the time handed to each run.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Recorder receives per-run measurements.
type Recorder interface {
	JobCompleted(name string, took time.Duration, err error)
}

// Scheduler runs each job on its own goroutine and ticker.
type Scheduler struct {
	clock    Clock
	recorder Recorder

	mu      sync.Mutex
	jobs    []Job
	running bool
	wg      sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for run timestamps.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRecorder sets a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Jobs must be added before Run.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return fmt.Errorf("%w: %q interval=%s", ErrInvalidJob, job.Name, job.Interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Run starts every job and blocks until ctx is cancelled. In-flight runs are
// allowed to finish before Run returns; no new run starts after cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	nuts.L.Infof("[Scheduler] Starting %d jobs", len(jobs))
	for _, job := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	<-ctx.Done()
	s.wg.Wait()
	nuts.L.Infof("[Scheduler] All jobs stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if job.RunImmediately {
		s.runOnce(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.runOnce(ctx, job)
		}
	}
}

// runOnce executes one run detached from cancellation so that shutdown does
// not interrupt a half-done evaluation.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	started := time.Now()
	err := s.safeRun(context.WithoutCancel(ctx), job)
	if err != nil {
		nuts.L.Errorf("[Scheduler] Job %s failed: %v", job.Name, err)
	} else {
		nuts.L.Debugf("[Scheduler] Job %s finished in %s", job.Name, time.Since(started))
	}
	if s.recorder != nil {
		s.recorder.JobCompleted(job.Name, time.Since(started), err)
	}
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v\n%s", job.Name, r, debug.Stack())
		}
	}()
	return job.Run(ctx, s.clock.Now())
}
