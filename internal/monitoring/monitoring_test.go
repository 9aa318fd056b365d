// FilePath: server/watchdog/internal/monitoring/monitoring_test.go
package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/mqtt"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/scheduler"
)

var (
	_ alerting.Recorder    = (*Service)(nil)
	_ scheduler.Recorder   = (*Service)(nil)
	_ mqtt.MessageRecorder = (*Service)(nil)
)

// value returns the counter or gauge value of the series matching labels.
func value(t *testing.T, s *Service, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := s.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func newTestService() *Service {
	return NewService(Config{Registry: prometheus.NewRegistry()})
}

func TestNotificationCounters(t *testing.T) {
	s := newTestService()
	s.NotificationEmitted("limits", alerting.EventRaise, false)
	s.NotificationEmitted("limits", alerting.EventRaise, true)
	s.NotificationEmitted("limits", alerting.EventRaise, true)
	s.NotificationFailed("limits")

	assert.Equal(t, 1.0, value(t, s, "watchdog_notifications_total", map[string]string{"family": "limits", "type": "raise", "reminder": "false"}))
	assert.Equal(t, 2.0, value(t, s, "watchdog_notifications_total", map[string]string{"family": "limits", "reminder": "true"}))
	assert.Equal(t, 1.0, value(t, s, "watchdog_notification_failures_total", map[string]string{"family": "limits"}))
}

func TestEvaluationMetrics(t *testing.T) {
	s := newTestService()
	s.EvaluationCompleted("health", 20*time.Millisecond, 3)
	s.EvaluationCompleted("health", 10*time.Millisecond, 1)
	s.EvaluationFailed("health")

	assert.Equal(t, 2.0, value(t, s, "watchdog_evaluations_total", map[string]string{"family": "health", "result": "ok"}))
	assert.Equal(t, 1.0, value(t, s, "watchdog_evaluations_total", map[string]string{"family": "health", "result": "error"}))
	assert.Equal(t, 1.0, value(t, s, "watchdog_latched_alerts", map[string]string{"family": "health"}))
	assert.Equal(t, 2.0, value(t, s, "watchdog_evaluation_duration_seconds", map[string]string{"family": "health"}))
}

func TestJobAndLeakMetrics(t *testing.T) {
	s := newTestService()
	s.JobCompleted("limits", time.Second, nil)
	s.JobCompleted("limits", time.Second, errors.New("boom"))
	s.LeakMessage("ok")
	s.LeakMessage("bad_input")
	s.LeakMessage("ok")

	assert.Equal(t, 1.0, value(t, s, "watchdog_job_runs_total", map[string]string{"job": "limits", "result": "error"}))
	assert.Equal(t, 2.0, value(t, s, "watchdog_leak_messages_total", map[string]string{"result": "ok"}))
}

func TestHandlerExposesMetrics(t *testing.T) {
	s := newTestService()
	s.LeakMessage("ok")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `watchdog_leak_messages_total{result="ok"} 1`))
}

func TestDefaultRegistryIncludesRuntimeCollectors(t *testing.T) {
	s := NewService(Config{})
	families, err := s.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}
