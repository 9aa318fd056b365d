// FilePath: server/watchdog/internal/cleanup/cleanup.go
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/scheduler"
	nuts "github.com/vaudience/go-nuts"
)

// EventReadingsDeleted is emitted after a sweep removed at least one reading.
const EventReadingsDeleted = "readings.deleted"

// ReadingPurger deletes telemetry older than a cutoff.
type ReadingPurger interface {
	DeleteOldData(ctx context.Context, before time.Time) (int64, error)
}

// CleanupService enforces telemetry retention
type CleanupService struct {
	readings ReadingPurger
	maxAge   time.Duration
	events   *nuts.EventEmitter
}

// New creates a new CleanupService
func New(readings ReadingPurger, maxAge time.Duration) *CleanupService {
	return &CleanupService{
		readings: readings,
		maxAge:   maxAge,
		events:   nuts.NewEventEmitter(),
	}
}

// Sweep deletes readings older than now minus the retention age.
func (s *CleanupService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.maxAge)
	deleted, err := s.readings.DeleteOldData(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		nuts.L.Infof("[Cleanup] Removed %d readings older than %s", deleted, cutoff.Format(time.RFC3339))
		s.events.Emit(EventReadingsDeleted, deleted)
	}
	return deleted, nil
}

// Job runs Sweep on the given interval.
func (s *CleanupService) Job(interval time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:     "retention",
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := s.Sweep(ctx, now)
			return err
		},
	}
}

// OnCleanup registers a callback receiving the number of deleted readings
func (s *CleanupService) OnCleanup(handler func(deleted int64)) {
	s.events.On(EventReadingsDeleted, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if n, ok := args[0].(int64); ok {
				handler(n)
			}
		}
	})
}
