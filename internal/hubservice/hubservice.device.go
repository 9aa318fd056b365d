// FilePath: server/watchdog/internal/hubservice/hubservice.device.go
package hubservice

import (
	"context"
	"time"

	"github.com/itsatony/struccy"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// DeviceService handles device-related business logic
type DeviceService interface {
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	UpdateDevice(ctx context.Context, device *models.Device) error
	DeleteDevice(ctx context.Context, id string) error
	ListDevices(ctx context.Context, filters models.DeviceFilters) ([]models.Device, error)
}

// CreateDevice validates and stores a new climate device
func (s *HubService) CreateDevice(ctx context.Context, device *models.Device) error {
	if err := validateDevice(device); err != nil {
		return err
	}
	if _, err := s.Locations.Get(ctx, device.LocationID); err != nil {
		return err
	}

	if device.ID == "" {
		device.ID = nuts.NID("dev", 12)
	}
	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	nuts.L.Infof("[DeviceService] Creating new device: %s (%s)", device.Name, device.ID)
	if err := s.Devices.Create(ctx, device); err != nil {
		return err
	}
	s.deviceChanged(device.ID)
	return nil
}

// GetDevice retrieves a device
func (s *HubService) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	return s.Devices.Get(ctx, id)
}

// UpdateDevice applies the fields the caller's roles may write
func (s *HubService) UpdateDevice(ctx context.Context, device *models.Device) error {
	if err := validateDevice(device); err != nil {
		return err
	}
	existing, err := s.Devices.Get(ctx, device.ID)
	if err != nil {
		return err
	}

	roles := GetUserRoles(ctx)
	updatedFields, _, err := struccy.UpdateStructFields(existing, device, roles, true, true)
	if err != nil {
		return errors.NewAuthorizationError("unauthorized field update", err)
	}
	existing.UpdatedAt = time.Now()

	nuts.L.Infof("[DeviceService] Updating device %s, fields changed: %v", existing.ID, updatedFields)
	if err := s.Devices.Update(ctx, existing); err != nil {
		return err
	}
	*device = *existing
	s.deviceChanged(device.ID)
	return nil
}

// DeleteDevice removes a device. Its telemetry is left to retention.
func (s *HubService) DeleteDevice(ctx context.Context, id string) error {
	nuts.L.Infof("[DeviceService] Deleting device: %s", id)
	if err := s.Devices.Delete(ctx, id); err != nil {
		return err
	}
	s.deviceChanged(id)
	return nil
}

// ListDevices lists devices matching filters
func (s *HubService) ListDevices(ctx context.Context, filters models.DeviceFilters) ([]models.Device, error) {
	return s.Devices.List(ctx, filters)
}

func validateDevice(device *models.Device) error {
	if device.Name == "" {
		return errors.NewValidationError("device name is required", nil)
	}
	if device.LocationID == "" {
		return errors.NewValidationError("location_id is required", nil)
	}
	if device.InactivityMinutes < 0 {
		return errors.NewValidationError("inactivity_minutes must not be negative", nil)
	}
	if device.BatteryOkLevel != nil && *device.BatteryOkLevel <= 0 {
		return errors.NewValidationError("battery_ok_level must be positive", nil)
	}
	return nil
}
