// FilePath: server/watchdog/api/resources/api.resource.locations.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"
)

// LocationHandlers encapsulates the location-related HTTP handlers
type LocationHandlers struct {
	locations LocationService
}

// @Summary List locations
// @Tags locations
// @Produce json
// @Success 200 {array} models.Location
// @Router /locations [get]
func (h *LocationHandlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	locations, err := h.locations.ListLocations(r.Context())
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to list locations", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, locations)
}

// @Summary Get a location by ID
// @Tags locations
// @Produce json
// @Param id path string true "Location ID"
// @Success 200 {object} models.Location
// @Failure 404 {object} errors.APIError
// @Router /locations/{id} [get]
func (h *LocationHandlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	location, err := h.locations.GetLocation(r.Context(), id)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to get location", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, location)
}
