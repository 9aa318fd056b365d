// FilePath: server/watchdog/internal/models/models.reading.go
package models

import "time"

type Metric string

const (
	Temperature Metric = "temperature"
	Humidity    Metric = "humidity"
	Battery     Metric = "battery"
)

// Valid reports whether m names a stored metric.
func (m Metric) Valid() bool {
	switch m {
	case Temperature, Humidity, Battery:
		return true
	}
	return false
}

// Reading is one telemetry row as stored in TimescaleDB. Any measurement may
// be missing.
type Reading struct {
	DeviceID    string    `json:"device_id" db:"device_id"`
	LocationID  string    `json:"location_id" db:"location_id"`
	Time        time.Time `json:"time" db:"time"`
	Temperature *float64  `json:"temperature,omitempty" db:"temperature"`
	Humidity    *float64  `json:"humidity,omitempty" db:"humidity"`
	Battery     *float64  `json:"battery,omitempty" db:"battery"`
}

// Sample projects a single metric out of the reading.
func (r Reading) Sample(m Metric) Sample {
	s := Sample{Time: r.Time}
	switch m {
	case Temperature:
		s.Value = r.Temperature
	case Humidity:
		s.Value = r.Humidity
	case Battery:
		s.Value = r.Battery
	}
	return s
}

// Samples projects metric m out of every reading, keeping order.
func Samples(readings []Reading, m Metric) []Sample {
	out := make([]Sample, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.Sample(m))
	}
	return out
}

// Sample is a single timestamped value. A nil Value is a reading without this
// measurement.
type Sample struct {
	Time  time.Time `json:"time" db:"time"`
	Value *float64  `json:"value" db:"value"`
}

// TimeSeriesPoint is one point of a downsampled series. Time is the bucket
// start; Value is the mean of the non-null members or nil.
type TimeSeriesPoint struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
