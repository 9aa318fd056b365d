// FilePath: server/watchdog/internal/monitoring/monitoring.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	nuts "github.com/vaudience/go-nuts"
)

const metricPrefix = "watchdog_"

// Config holds monitoring configuration
type Config struct {
	// Registry receives every collector. A fresh registry with process and Go
	// collectors is created when nil.
	Registry *prometheus.Registry
}

// Service records engine, scheduler and ingestion metrics. It satisfies the
// recorder interfaces of alerting, scheduler and mqtt.
type Service struct {
	registry *prometheus.Registry

	notifications  *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
	evaluations    *prometheus.CounterVec
	evaluationTime *prometheus.HistogramVec
	latched        *prometheus.GaugeVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	leakMessages   *prometheus.CounterVec
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Service{
		registry: registry,
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notifications emitted by family, type and reminder flag",
			},
			[]string{"family", "type", "reminder"},
		),
		notifyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_failures_total",
				Help: "Notifications the sink failed to deliver",
			},
			[]string{"family"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluations_total",
				Help: "Evaluation ticks by family and result",
			},
			[]string{"family", "result"},
		),
		evaluationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evaluation_duration_seconds",
				Help:    "Duration of completed evaluation ticks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"family"},
		),
		latched: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "latched_alerts",
				Help: "Currently latched alerts per family",
			},
			[]string{"family"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "job_runs_total",
				Help: "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_duration_seconds",
				Help:    "Scheduled job duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		leakMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "leak_messages_total",
				Help: "Leak sensor messages by ingestion result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		s.notifications,
		s.notifyFailures,
		s.evaluations,
		s.evaluationTime,
		s.latched,
		s.jobRuns,
		s.jobDuration,
		s.leakMessages,
	)
	return s
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry metrics are recorded to.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Service) NotificationEmitted(family string, eventType alerting.EventType, reminder bool) {
	flag := "false"
	if reminder {
		flag = "true"
	}
	s.notifications.WithLabelValues(family, string(eventType), flag).Inc()
}

func (s *Service) NotificationFailed(family string) {
	s.notifyFailures.WithLabelValues(family).Inc()
}

func (s *Service) EvaluationFailed(family string) {
	s.evaluations.WithLabelValues(family, "error").Inc()
}

func (s *Service) EvaluationCompleted(family string, took time.Duration, latched int) {
	s.evaluations.WithLabelValues(family, "ok").Inc()
	s.evaluationTime.WithLabelValues(family).Observe(took.Seconds())
	s.latched.WithLabelValues(family).Set(float64(latched))
}

func (s *Service) JobCompleted(name string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.jobRuns.WithLabelValues(name, result).Inc()
	s.jobDuration.WithLabelValues(name).Observe(took.Seconds())
}

func (s *Service) LeakMessage(result string) {
	s.leakMessages.WithLabelValues(result).Inc()
}

// RecordEvent logs a lifecycle event with labels.
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	nuts.L.Infof("[Monitoring] Event %s recorded with labels: %v", eventName, labels)
}
