// FilePath: server/watchdog/internal/charts/charts.go
package charts

import (
	"context"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/timeseries"
)

// MaxRange bounds a single chart request.
const MaxRange = 31 * 24 * time.Hour

// LocationReader provides the limits of a location.
type LocationReader interface {
	Get(ctx context.Context, id string) (*models.Location, error)
}

// ReadingReader provides readings in a closed time range, oldest first.
type ReadingReader interface {
	GetLocationReadings(ctx context.Context, locationID string, start, end time.Time) ([]models.Reading, error)
	GetDeviceReadings(ctx context.Context, deviceID string, start, end time.Time) ([]models.Reading, error)
}

// Series is a downsampled metric series. IntervalMinutes 0 means full
// resolution.
type Series struct {
	Metric          models.Metric            `json:"metric"`
	From            time.Time                `json:"from"`
	To              time.Time                `json:"to"`
	IntervalMinutes int                      `json:"interval_minutes"`
	Points          []models.TimeSeriesPoint `json:"points"`
}

// LimitPoint is a temperature point annotated against the location limits.
type LimitPoint struct {
	models.TimeSeriesPoint
	BelowMin bool `json:"below_min"`
	AboveMax bool `json:"above_max"`
}

// LimitCheck is the temperature series of a location checked against its
// limits.
type LimitCheck struct {
	LocationID      string       `json:"location_id"`
	MinTemperature  *float64     `json:"min_temperature,omitempty"`
	MaxTemperature  *float64     `json:"max_temperature,omitempty"`
	IntervalMinutes int          `json:"interval_minutes"`
	Points          []LimitPoint `json:"points"`
	Breaches        int          `json:"breaches"`
}

// Service answers chart queries from stored telemetry.
type Service struct {
	locations LocationReader
	readings  ReadingReader
}

// New creates a chart service
func New(locations LocationReader, readings ReadingReader) *Service {
	return &Service{locations: locations, readings: readings}
}

// Validate checks if all required repositories are initialized
func (s *Service) Validate() error {
	if s.locations == nil {
		return ErrMissingRepository("locations")
	}
	if s.readings == nil {
		return ErrMissingRepository("readings")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

// LocationSeries returns the downsampled metric series of a location.
func (s *Service) LocationSeries(ctx context.Context, locationID string, q models.SeriesQuery) (*Series, error) {
	if err := validateQuery(q, false); err != nil {
		return nil, err
	}
	if _, err := s.locations.Get(ctx, locationID); err != nil {
		return nil, err
	}
	readings, err := s.readings.GetLocationReadings(ctx, locationID, q.From, q.To)
	if err != nil {
		return nil, err
	}
	return buildSeries(readings, q)
}

// DeviceSeries returns the downsampled metric series of a single device.
func (s *Service) DeviceSeries(ctx context.Context, deviceID string, q models.SeriesQuery) (*Series, error) {
	if err := validateQuery(q, true); err != nil {
		return nil, err
	}
	readings, err := s.readings.GetDeviceReadings(ctx, deviceID, q.From, q.To)
	if err != nil {
		return nil, err
	}
	return buildSeries(readings, q)
}

// CheckLimits buckets the temperature of a location over [from, to] and flags
// every point outside the configured limits. A nil point is never flagged.
func (s *Service) CheckLimits(ctx context.Context, locationID string, from, to time.Time) (*LimitCheck, error) {
	if err := validateQuery(models.SeriesQuery{From: from, To: to, Metric: models.Temperature}, false); err != nil {
		return nil, err
	}
	location, err := s.locations.Get(ctx, locationID)
	if err != nil {
		return nil, err
	}
	readings, err := s.readings.GetLocationReadings(ctx, locationID, from, to)
	if err != nil {
		return nil, err
	}
	interval, points, err := timeseries.Downsample(models.Samples(readings, models.Temperature))
	if err != nil {
		return nil, errors.NewInternalError("failed to downsample temperature", err)
	}

	check := &LimitCheck{
		LocationID:      location.ID,
		MinTemperature:  location.MinTemperature,
		MaxTemperature:  location.MaxTemperature,
		IntervalMinutes: interval,
		Points:          make([]LimitPoint, 0, len(points)),
	}
	for _, p := range points {
		lp := LimitPoint{TimeSeriesPoint: p}
		if p.Value != nil {
			lp.BelowMin = location.BelowMin(*p.Value)
			lp.AboveMax = location.AboveMax(*p.Value)
		}
		if lp.BelowMin || lp.AboveMax {
			check.Breaches++
		}
		check.Points = append(check.Points, lp)
	}
	return check, nil
}

func buildSeries(readings []models.Reading, q models.SeriesQuery) (*Series, error) {
	interval, points, err := timeseries.Downsample(models.Samples(readings, q.Metric))
	if err != nil {
		return nil, errors.NewInternalError("failed to downsample series", err)
	}
	return &Series{
		Metric:          q.Metric,
		From:            q.From,
		To:              q.To,
		IntervalMinutes: interval,
		Points:          points,
	}, nil
}

func validateQuery(q models.SeriesQuery, allowBattery bool) error {
	if q.From.IsZero() || q.To.IsZero() {
		return errors.NewValidationError("from and to are required", nil)
	}
	if !q.To.After(q.From) {
		return errors.NewValidationError("to must be after from", nil)
	}
	if q.To.Sub(q.From) > MaxRange {
		return errors.NewValidationError("range exceeds 31 days", nil)
	}
	if !q.Metric.Valid() {
		return errors.NewValidationError("unknown metric: "+string(q.Metric), nil)
	}
	if q.Metric == models.Battery && !allowBattery {
		return errors.NewValidationError("battery is only available per device", nil)
	}
	return nil
}
