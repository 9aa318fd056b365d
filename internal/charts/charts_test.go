// FilePath: server/watchdog/internal/charts/charts_test.go
package charts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

var base = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeLocations map[string]*models.Location

func (f fakeLocations) Get(_ context.Context, id string) (*models.Location, error) {
	if l, ok := f[id]; ok {
		return l, nil
	}
	return nil, errors.NewNotFoundError("location not found", nil)
}

type fakeReadings struct {
	byLocation map[string][]models.Reading
	byDevice   map[string][]models.Reading
}

func inRange(readings []models.Reading, start, end time.Time) []models.Reading {
	var out []models.Reading
	for _, r := range readings {
		if !r.Time.Before(start) && !r.Time.After(end) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeReadings) GetLocationReadings(_ context.Context, id string, start, end time.Time) ([]models.Reading, error) {
	return inRange(f.byLocation[id], start, end), nil
}

func (f *fakeReadings) GetDeviceReadings(_ context.Context, id string, start, end time.Time) ([]models.Reading, error) {
	return inRange(f.byDevice[id], start, end), nil
}

func reading(minute int, temp float64) models.Reading {
	return models.Reading{
		DeviceID:    "dev-1",
		LocationID:  "cellar",
		Time:        base.Add(time.Duration(minute) * time.Minute),
		Temperature: models.Float(temp),
		Humidity:    models.Float(50),
	}
}

func newService() *Service {
	locations := fakeLocations{
		"cellar": {ID: "cellar", Name: "Cellar", MinTemperature: models.Float(5), MaxTemperature: models.Float(30)},
	}
	readings := &fakeReadings{byLocation: map[string][]models.Reading{}, byDevice: map[string][]models.Reading{}}
	return New(locations, readings)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, newService().Validate())
	assert.Error(t, New(nil, &fakeReadings{}).Validate())
}

func TestShortRangeKeepsFullResolution(t *testing.T) {
	s := newService()
	fr := s.readings.(*fakeReadings)
	for m := 0; m < 60; m += 10 {
		fr.byLocation["cellar"] = append(fr.byLocation["cellar"], reading(m, 20))
	}

	series, err := s.LocationSeries(context.Background(), "cellar", models.SeriesQuery{
		From: base, To: base.Add(time.Hour), Metric: models.Temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, series.IntervalMinutes)
	assert.Len(t, series.Points, 6)
}

func TestIntervalFollowsActualSpanNotRequestedRange(t *testing.T) {
	s := newService()
	fr := s.readings.(*fakeReadings)
	fr.byLocation["cellar"] = []models.Reading{reading(0, 10), reading(30, 12)}

	series, err := s.LocationSeries(context.Background(), "cellar", models.SeriesQuery{
		From: base.Add(-10 * 24 * time.Hour), To: base.Add(time.Hour), Metric: models.Temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, series.IntervalMinutes)
	assert.Len(t, series.Points, 2)
}

func TestLongSpanIsBucketed(t *testing.T) {
	s := newService()
	fr := s.readings.(*fakeReadings)
	// 7 hours of minute readings: five-minute buckets
	for m := 0; m <= 7*60; m++ {
		fr.byLocation["cellar"] = append(fr.byLocation["cellar"], reading(m, float64(m%5)))
	}

	series, err := s.LocationSeries(context.Background(), "cellar", models.SeriesQuery{
		From: base, To: base.Add(8 * time.Hour), Metric: models.Temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, series.IntervalMinutes)
	require.NotEmpty(t, series.Points)
	require.NotNil(t, series.Points[0].Value)
	assert.InDelta(t, 2.0, *series.Points[0].Value, 1e-9)
}

func TestDeviceSeriesAllowsBattery(t *testing.T) {
	s := newService()
	fr := s.readings.(*fakeReadings)
	r := reading(0, 20)
	r.Battery = models.Float(2.9)
	fr.byDevice["dev-1"] = []models.Reading{r}

	series, err := s.DeviceSeries(context.Background(), "dev-1", models.SeriesQuery{
		From: base, To: base.Add(time.Hour), Metric: models.Battery,
	})
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	assert.InDelta(t, 2.9, *series.Points[0].Value, 1e-9)

	_, err = s.LocationSeries(context.Background(), "cellar", models.SeriesQuery{
		From: base, To: base.Add(time.Hour), Metric: models.Battery,
	})
	assert.True(t, errors.IsValidation(err))
}

func TestQueryValidation(t *testing.T) {
	s := newService()
	ctx := context.Background()
	cases := []models.SeriesQuery{
		{To: base, Metric: models.Temperature},
		{From: base, To: base, Metric: models.Temperature},
		{From: base, To: base.Add(40 * 24 * time.Hour), Metric: models.Temperature},
		{From: base, To: base.Add(time.Hour), Metric: "pressure"},
	}
	for _, q := range cases {
		_, err := s.LocationSeries(ctx, "cellar", q)
		assert.True(t, errors.IsValidation(err), "query %+v", q)
	}
}

func TestUnknownLocation(t *testing.T) {
	_, err := newService().LocationSeries(context.Background(), "attic", models.SeriesQuery{
		From: base, To: base.Add(time.Hour), Metric: models.Temperature,
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestCheckLimitsFlagsPoints(t *testing.T) {
	s := newService()
	fr := s.readings.(*fakeReadings)
	fr.byLocation["cellar"] = []models.Reading{reading(0, 4), reading(10, 20), reading(20, 31)}
	empty := reading(30, 0)
	empty.Temperature = nil
	fr.byLocation["cellar"] = append(fr.byLocation["cellar"], empty)

	check, err := s.CheckLimits(context.Background(), "cellar", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, check.Points, 4)
	assert.True(t, check.Points[0].BelowMin)
	assert.False(t, check.Points[1].BelowMin || check.Points[1].AboveMax)
	assert.True(t, check.Points[2].AboveMax)
	assert.Nil(t, check.Points[3].Value)
	assert.False(t, check.Points[3].BelowMin || check.Points[3].AboveMax)
	assert.Equal(t, 2, check.Breaches)
	assert.Equal(t, 5.0, *check.MinTemperature)
}
