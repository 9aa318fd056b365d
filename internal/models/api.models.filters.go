// FilePath: server/watchdog/internal/models/api.models.filters.go
package models

import "time"

// SeriesQuery defines the query options accepted by the chart endpoints
type SeriesQuery struct {
	From   time.Time `schema:"from"`
	To     time.Time `schema:"to"`
	Metric Metric    `schema:"metric"`
}

// DeviceFilters defines the available filter options for device listings
type DeviceFilters struct {
	LocationID     string `schema:"location_id"`
	IncludeRetired bool   `schema:"include_retired"`
}
