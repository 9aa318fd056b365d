// FilePath: server/watchdog/api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsatony/w4b_v3/server/watchdog/api/middleware"
	"github.com/itsatony/w4b_v3/server/watchdog/api/resources"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.KeycloakMiddleware
	resources *resources.Resources
}

func NewRouter(res *resources.Resources, keycloakConfig middleware.KeycloakConfig) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewKeycloakMiddleware(keycloakConfig),
		resources: res,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/metrics", r.resources.Metrics).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	protected.HandleFunc("/alerts", r.resources.Alerts.ListAlerts).Methods(http.MethodGet)

	// Locations
	locations := protected.PathPrefix("/locations").Subrouter()
	locations.HandleFunc("", r.resources.Locations.ListLocations).Methods(http.MethodGet)
	locations.HandleFunc("/{id}", r.resources.Locations.GetLocation).Methods(http.MethodGet)
	locations.HandleFunc("/{id}/series", r.resources.Charts.LocationSeries).Methods(http.MethodGet)
	locations.HandleFunc("/{id}/limit-check", r.resources.Charts.LimitCheck).Methods(http.MethodGet)

	// Devices
	devices := protected.PathPrefix("/devices").Subrouter()
	devices.HandleFunc("", r.resources.Devices.ListDevices).Methods(http.MethodGet)
	devices.HandleFunc("/{id}", r.resources.Devices.GetDevice).Methods(http.MethodGet)
	devices.HandleFunc("/{id}/series", r.resources.Charts.DeviceSeries).Methods(http.MethodGet)

	writes := devices.NewRoute().Subrouter()
	writes.Use(r.auth.RequireRoles([]string{"owner"}))
	writes.HandleFunc("", r.resources.Devices.CreateDevice).Methods(http.MethodPost)
	writes.HandleFunc("/{id}", r.resources.Devices.UpdateDevice).Methods(http.MethodPut)
	writes.HandleFunc("/{id}", r.resources.Devices.DeleteDevice).Methods(http.MethodDelete)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
