// FilePath: server/watchdog/internal/hubservice/hubservice.location.go
package hubservice

import (
	"context"

	"github.com/itsatony/struccy"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// GetLocation retrieves a location with role-based field filtering
func (s *HubService) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	location, err := s.Locations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return filterLocation(location, GetUserRoles(ctx))
}

// ListLocations retrieves all locations with role-based filtering
func (s *HubService) ListLocations(ctx context.Context) ([]*models.Location, error) {
	locations, err := s.Locations.GetLocations(ctx)
	if err != nil {
		return nil, err
	}

	roles := GetUserRoles(ctx)
	filtered := make([]*models.Location, 0, len(locations))
	for i := range locations {
		location, err := filterLocation(&locations[i], roles)
		if err != nil {
			nuts.L.Warnf("[LocationService] Failed to filter location %s: %v", locations[i].ID, err)
			continue
		}
		filtered = append(filtered, location)
	}
	return filtered, nil
}

func filterLocation(location *models.Location, roles []string) (*models.Location, error) {
	filteredMap, err := struccy.StructToMapFieldsWithReadXS(location, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to filter location fields", err)
	}
	filtered := &models.Location{}
	_, err = struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to map filtered fields to location struct", err)
	}
	return filtered, nil
}
