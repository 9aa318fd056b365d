// FilePath: server/watchdog/api/resources/api.resource.alerts.go
package resources

import (
	"net/http"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
)

// AlertHandlers exposes the latched alerts of every family
type AlertHandlers struct {
	sources []AlertSource
}

// @Summary List latched alerts
// @Tags alerts
// @Produce json
// @Param family query string false "Restrict to one family"
// @Success 200 {array} alerting.LatchedAlert
// @Router /alerts [get]
func (h *AlertHandlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("family")

	alerts := []alerting.LatchedAlert{}
	for _, src := range h.sources {
		if family != "" && src.Name() != family {
			continue
		}
		alerts = append(alerts, src.Latched()...)
	}

	respondWithJSON(w, http.StatusOK, alerts)
}
