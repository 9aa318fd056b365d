// FilePath: server/watchdog/internal/hubservice/hubservice.go
package hubservice

import (
	"context"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// EventDeviceChanged is emitted with the device ID after a create, update or
// delete.
const EventDeviceChanged = "device.changed"

// HubService contains all repositories and service-wide dependencies
type HubService struct {
	Devices     repository.DeviceRepository
	Locations   repository.LocationRepository
	LeakDevices repository.LeakDeviceRepository
	events      *nuts.EventEmitter
}

// New creates a new HubService instance
func New(
	devices repository.DeviceRepository,
	locations repository.LocationRepository,
	leakDevices repository.LeakDeviceRepository,
) *HubService {
	return &HubService{
		Devices:     devices,
		Locations:   locations,
		LeakDevices: leakDevices,
		events:      nuts.NewEventEmitter(),
	}
}

// Validate checks if all required repositories are initialized
func (s *HubService) Validate() error {
	if s.Devices == nil {
		return ErrMissingRepository("devices")
	}
	if s.Locations == nil {
		return ErrMissingRepository("locations")
	}
	if s.LeakDevices == nil {
		return ErrMissingRepository("leakDevices")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

// OnDeviceChanged registers a callback for device changes
func (s *HubService) OnDeviceChanged(name string, handler func(id string)) {
	s.events.On(EventDeviceChanged, name, func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}

func (s *HubService) deviceChanged(id string) {
	s.events.Emit(EventDeviceChanged, id)
}

type rolesKey struct{}

// WithUserRoles stores the caller's roles for field-level access checks.
func WithUserRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey{}, roles)
}

// GetUserRoles retrieves user roles from context
func GetUserRoles(ctx context.Context) []string {
	if roles, ok := ctx.Value(rolesKey{}).([]string); ok && len(roles) > 0 {
		return roles
	}
	return []string{"guest"}
}
