// FilePath: server/watchdog/internal/timeseries/interval.go
package timeseries

import "github.com/itsatony/w4b_v3/server/watchdog/internal/models"

// ladder is evaluated top-down; the first threshold exceeded wins.
var ladder = []struct {
	aboveHours float64
	minutes    int
}{
	{72, 60},
	{48, 30},
	{24, 15},
	{12, 10},
	{6, 5},
	{3, 1},
}

// ChooseInterval picks a bucket width in minutes for a series spanning
// spanHours. Spans of three hours or less get full resolution (0).
func ChooseInterval(spanHours float64) int {
	for _, step := range ladder {
		if spanHours > step.aboveHours {
			return step.minutes
		}
	}
	return FullResolution
}

// SpanHours is the distance between the earliest and latest sample, in hours.
func SpanHours(samples []models.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	first, last := samples[0].Time, samples[0].Time
	for _, s := range samples[1:] {
		if s.Time.Before(first) {
			first = s.Time
		}
		if s.Time.After(last) {
			last = s.Time
		}
	}
	return last.Sub(first).Hours()
}

// Downsample chooses an interval from the actual span of samples and buckets
// them with it.
func Downsample(samples []models.Sample) (int, []models.TimeSeriesPoint, error) {
	interval := ChooseInterval(SpanHours(samples))
	points, err := Bucket(samples, interval)
	if err != nil {
		return 0, nil, err
	}
	return interval, points, nil
}
