// FilePath: server/watchdog/internal/timeseries/average.go
package timeseries

import "github.com/itsatony/w4b_v3/server/watchdog/internal/models"

// Average collapses a window into one point stamped with the earliest sample
// time. The value is the mean of non-null values, or nil if there are none.
func Average(samples []models.Sample) (models.TimeSeriesPoint, error) {
	if len(samples) == 0 {
		return models.TimeSeriesPoint{}, ErrEmptyWindow
	}
	earliest := samples[0].Time
	var sum float64
	var count int
	for _, s := range samples {
		if s.Time.Before(earliest) {
			earliest = s.Time
		}
		if s.Value != nil {
			sum += *s.Value
			count++
		}
	}
	p := models.TimeSeriesPoint{Time: earliest}
	if count > 0 {
		p.Value = models.Float(sum / float64(count))
	}
	return p, nil
}
