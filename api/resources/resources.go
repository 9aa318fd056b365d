// FilePath: server/watchdog/api/resources/resources.go
package resources

import (
	"context"
	"net/http"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/charts"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/hubservice"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

// LocationService provides role-filtered location views.
type LocationService interface {
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	ListLocations(ctx context.Context) ([]*models.Location, error)
}

// ChartService answers series and limit-check queries.
type ChartService interface {
	LocationSeries(ctx context.Context, locationID string, q models.SeriesQuery) (*charts.Series, error)
	DeviceSeries(ctx context.Context, deviceID string, q models.SeriesQuery) (*charts.Series, error)
	CheckLimits(ctx context.Context, locationID string, from, to time.Time) (*charts.LimitCheck, error)
}

// AlertSource exposes the latched alerts of one family.
type AlertSource interface {
	Name() string
	Latched() []alerting.LatchedAlert
}

// Resources holds all HTTP resource handlers
type Resources struct {
	Devices     *DeviceHandlers
	Locations   *LocationHandlers
	Charts      *ChartHandlers
	Alerts      *AlertHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
	Metrics     func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(devices hubservice.DeviceService, locations LocationService, chartSvc ChartService, alerts ...AlertSource) *Resources {
	return &Resources{
		Devices:     &DeviceHandlers{devices: devices},
		Locations:   &LocationHandlers{locations: locations},
		Charts:      &ChartHandlers{charts: chartSvc},
		Alerts:      &AlertHandlers{sources: alerts},
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		},
		Metrics: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	}
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}

// SetMetrics sets the metrics handler
func (r *Resources) SetMetrics(h func(w http.ResponseWriter, r *http.Request)) {
	r.Metrics = h
}
