// FilePath: server/watchdog/api/resources/api.resource.charts.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/errors"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// ChartHandlers serves downsampled series for charts
type ChartHandlers struct {
	charts ChartService
}

func seriesQuery(r *http.Request) (models.SeriesQuery, error) {
	q := models.SeriesQuery{Metric: models.Temperature}
	if err := decodeQuery(&q, r); err != nil {
		return q, err
	}
	return q, nil
}

// @Summary Location series
// @Description Readings of a location in [from, to], bucketed by the span of the data
// @Tags charts
// @Produce json
// @Param id path string true "Location ID"
// @Param from query string true "Start time (RFC3339)"
// @Param to query string true "End time (RFC3339)"
// @Param metric query string false "temperature or humidity"
// @Success 200 {object} charts.Series
// @Router /locations/{id}/series [get]
func (h *ChartHandlers) LocationSeries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	q, err := seriesQuery(r)
	if err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	series, err := h.charts.LocationSeries(r.Context(), id, q)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to build series", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, series)
}

// @Summary Device series
// @Tags charts
// @Produce json
// @Param id path string true "Device ID"
// @Param from query string true "Start time (RFC3339)"
// @Param to query string true "End time (RFC3339)"
// @Param metric query string false "temperature, humidity or battery"
// @Success 200 {object} charts.Series
// @Router /devices/{id}/series [get]
func (h *ChartHandlers) DeviceSeries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	q, err := seriesQuery(r)
	if err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	series, err := h.charts.DeviceSeries(r.Context(), id, q)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to build series", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, series)
}

// @Summary Limit check
// @Description Bucketed temperature of a location flagged against its limits
// @Tags charts
// @Produce json
// @Param id path string true "Location ID"
// @Param from query string true "Start time (RFC3339)"
// @Param to query string true "End time (RFC3339)"
// @Success 200 {object} charts.LimitCheck
// @Router /locations/{id}/limit-check [get]
func (h *ChartHandlers) LimitCheck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := nuts.NID("req", 12)

	q, err := seriesQuery(r)
	if err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	check, err := h.charts.CheckLimits(r.Context(), id, q.From, q.To)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to check limits", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, check)
}
