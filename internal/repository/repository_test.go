// FilePath: server/watchdog/internal/repository/repository_test.go
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type noTx struct{}

func (noTx) BeginTx(context.Context) (database.Transaction, error) {
	return nil, errors.New("not supported")
}

type fakeDevices struct {
	noTx
	devices []models.Device
	filters []models.DeviceFilters
	err     error
}

func (f *fakeDevices) Create(context.Context, *models.Device) error        { return nil }
func (f *fakeDevices) Get(context.Context, string) (*models.Device, error) { return nil, ErrNotFound }
func (f *fakeDevices) Update(context.Context, *models.Device) error        { return nil }
func (f *fakeDevices) Delete(context.Context, string) error                { return nil }

func (f *fakeDevices) List(_ context.Context, filters models.DeviceFilters) ([]models.Device, error) {
	f.filters = append(f.filters, filters)
	return f.devices, f.err
}

type fakeReadings struct {
	noTx
	latest map[string]*models.Reading
	asked  []string
	err    error
}

func (f *fakeReadings) GetLocationReadingsSince(context.Context, string, time.Time) ([]models.Reading, error) {
	return nil, nil
}

func (f *fakeReadings) GetLocationReadings(context.Context, string, time.Time, time.Time) ([]models.Reading, error) {
	return nil, nil
}

func (f *fakeReadings) GetDeviceReadings(context.Context, string, time.Time, time.Time) ([]models.Reading, error) {
	return nil, nil
}

func (f *fakeReadings) GetLatestReadings(_ context.Context, ids []string) (map[string]*models.Reading, error) {
	f.asked = ids
	return f.latest, f.err
}

func (f *fakeReadings) DeleteOldData(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func TestDeviceSnapshotAttachesLatestReading(t *testing.T) {
	devices := &fakeDevices{devices: []models.Device{
		{ID: "a", Name: "probe-a"},
		{ID: "b", Name: "probe-b", Retired: true},
		{ID: "c", Name: "probe-c"},
	}}
	latest := &models.Reading{DeviceID: "a", Time: now.Add(-time.Minute), Battery: models.Float(2.8)}
	readings := &fakeReadings{latest: map[string]*models.Reading{"a": latest}}

	got, err := NewDeviceSnapshot(devices, readings).GetDevices(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []models.DeviceFilters{{IncludeRetired: true}}, devices.filters)
	assert.Equal(t, []string{"a", "b", "c"}, readings.asked)
	assert.Same(t, latest, got[0].LastReading)
	assert.Nil(t, got[1].LastReading)
	assert.True(t, got[1].Retired)
	assert.Nil(t, got[2].LastReading)
}

func TestDeviceSnapshotPropagatesErrors(t *testing.T) {
	backend := errors.New("connection refused")

	_, err := NewDeviceSnapshot(&fakeDevices{err: backend}, &fakeReadings{}).GetDevices(context.Background(), now)
	assert.ErrorIs(t, err, backend)

	_, err = NewDeviceSnapshot(&fakeDevices{devices: []models.Device{{ID: "a"}}}, &fakeReadings{err: backend}).GetDevices(context.Background(), now)
	assert.ErrorIs(t, err, backend)
}
