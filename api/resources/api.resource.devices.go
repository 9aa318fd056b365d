// FilePath: server/watchdog/api/resources/api.resource.devices.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/hubservice"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// DeviceHandlers encapsulates the device-related HTTP handlers
type DeviceHandlers struct {
	devices hubservice.DeviceService
}

// @Summary Create a new device
// @Tags devices
// @Accept json
// @Produce json
// @Param device body models.Device true "Device details"
// @Success 201 {object} models.Device
// @Failure 400 {object} errors.APIError
// @Router /devices [post]
// @Security BearerAuth
func (h *DeviceHandlers) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var device models.Device
	requestID := nuts.NID("req", 12)

	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if err := h.devices.CreateDevice(r.Context(), &device); err != nil {
		respondWithError(w, asAPIError(err, "failed to create device", requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, device)
}

// @Summary Get a device by ID
// @Tags devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [get]
func (h *DeviceHandlers) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	device, err := h.devices.GetDevice(r.Context(), id)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to get device", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, device)
}

// @Summary List devices
// @Tags devices
// @Produce json
// @Param location_id query string false "Location ID"
// @Param include_retired query bool false "Include retired devices"
// @Success 200 {array} models.Device
// @Router /devices [get]
func (h *DeviceHandlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.DeviceFilters
	if err := decodeQuery(&filters, r); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	devices, err := h.devices.ListDevices(r.Context(), filters)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to list devices", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, devices)
}

// @Summary Update a device
// @Tags devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param device body models.Device true "Updated device details"
// @Success 200 {object} models.Device
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [put]
// @Security BearerAuth
func (h *DeviceHandlers) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	device.ID = id

	if err := h.devices.UpdateDevice(r.Context(), &device); err != nil {
		respondWithError(w, asAPIError(err, "failed to update device", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, device)
}

// @Summary Delete a device
// @Tags devices
// @Param id path string true "Device ID"
// @Success 204
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [delete]
// @Security BearerAuth
func (h *DeviceHandlers) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	if err := h.devices.DeleteDevice(r.Context(), id); err != nil {
		respondWithError(w, asAPIError(err, "failed to delete device", requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
