// FilePath: server/watchdog/internal/timeseries/bucket.go
package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

const (
	// FullResolution disables bucketing.
	FullResolution = 0
	// MaxIntervalMinutes is the widest bucket; buckets subdivide an hour.
	MaxIntervalMinutes = 60
)

var (
	// ErrInvalidInterval is returned for bucket widths outside [1, 60] (0 aside).
	ErrInvalidInterval = errors.New("timeseries: interval out of range")
	// ErrEmptyWindow is returned when averaging an empty sample set.
	ErrEmptyWindow = errors.New("timeseries: empty window")
)

// Bucket reduces samples to one point per intervalMinutes-wide window. Bucket
// keys are period starts in the sample's own location. With intervalMinutes 0
// every sample is returned unchanged and in input order.
func Bucket(samples []models.Sample, intervalMinutes int) ([]models.TimeSeriesPoint, error) {
	if intervalMinutes == FullResolution {
		out := make([]models.TimeSeriesPoint, len(samples))
		for i, s := range samples {
			out[i] = models.TimeSeriesPoint{Time: s.Time, Value: s.Value}
		}
		return out, nil
	}
	if intervalMinutes < 1 || intervalMinutes > MaxIntervalMinutes {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidInterval, intervalMinutes)
	}

	type bucket struct {
		start time.Time
		sum   float64
		count int
	}
	buckets := make(map[int64]*bucket)
	for _, s := range samples {
		start := FloorToInterval(s.Time, intervalMinutes)
		key := start.UnixNano()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{start: start}
			buckets[key] = b
		}
		if s.Value != nil {
			b.sum += *s.Value
			b.count++
		}
	}

	out := make([]models.TimeSeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		p := models.TimeSeriesPoint{Time: b.start}
		if b.count > 0 {
			p.Value = models.Float(b.sum / float64(b.count))
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// FloorToInterval clears seconds and below, then moves back to the start of
// the intervalMinutes period within the hour. The location is preserved.
func FloorToInterval(t time.Time, intervalMinutes int) time.Time {
	minute := t.Minute()
	if intervalMinutes > 0 {
		minute -= minute % intervalMinutes
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}
