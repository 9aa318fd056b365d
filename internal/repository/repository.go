// FilePath: server/watchdog/internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/database"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// LocationSource provides the locations and their temperature limits.
type LocationSource interface {
	GetLocations(ctx context.Context) ([]models.Location, error)
}

// ReadingSource provides the recent readings of a location.
type ReadingSource interface {
	GetLocationReadingsSince(ctx context.Context, locationID string, since time.Time) ([]models.Reading, error)
}

// DeviceSource provides climate devices together with their latest reading.
type DeviceSource interface {
	GetDevices(ctx context.Context, now time.Time) ([]models.Device, error)
}

// LeakDeviceSource provides the known leak sensors.
type LeakDeviceSource interface {
	GetLeakDevices(ctx context.Context) ([]models.LeakDevice, error)
}

// LocationRepository defines the interface for location data operations
type LocationRepository interface {
	database.Repository
	LocationSource
	Get(ctx context.Context, id string) (*models.Location, error)
}

// DeviceRepository defines the interface for climate device operations
type DeviceRepository interface {
	database.Repository
	Create(ctx context.Context, device *models.Device) error
	Get(ctx context.Context, id string) (*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters models.DeviceFilters) ([]models.Device, error)
}

// LeakDeviceRepository defines the interface for leak sensor operations
type LeakDeviceRepository interface {
	database.Repository
	LeakDeviceSource
	Get(ctx context.Context, id string) (*models.LeakDevice, error)
}

// ReadingRepository defines the interface for telemetry stored in TimescaleDB
type ReadingRepository interface {
	database.Repository
	ReadingSource
	GetLocationReadings(ctx context.Context, locationID string, start, end time.Time) ([]models.Reading, error)
	GetDeviceReadings(ctx context.Context, deviceID string, start, end time.Time) ([]models.Reading, error)
	GetLatestReadings(ctx context.Context, deviceIDs []string) (map[string]*models.Reading, error)
	DeleteOldData(ctx context.Context, before time.Time) (int64, error)
}

// DeviceSnapshot joins devices from the app database with their latest
// telemetry row.
type DeviceSnapshot struct {
	devices  DeviceRepository
	readings ReadingRepository
}

// NewDeviceSnapshot creates a DeviceSource backed by both databases.
func NewDeviceSnapshot(devices DeviceRepository, readings ReadingRepository) *DeviceSnapshot {
	return &DeviceSnapshot{devices: devices, readings: readings}
}

// GetDevices lists every device, retired ones included, with LastReading set
// when the device has reported at least once.
func (s *DeviceSnapshot) GetDevices(ctx context.Context, _ time.Time) ([]models.Device, error) {
	devices, err := s.devices.List(ctx, models.DeviceFilters{IncludeRetired: true})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	latest, err := s.readings.GetLatestReadings(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if r, ok := latest[devices[i].ID]; ok {
			devices[i].LastReading = r
		}
	}
	return devices, nil
}
