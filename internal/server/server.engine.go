// FilePath: server/watchdog/internal/server/server.engine.go
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/api/resources"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/config"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/scheduler"
)

// evaluable is one alert family ready to be ticked.
type evaluable interface {
	Name() string
	Evaluate(ctx context.Context, now time.Time) ([]alerting.Notification, error)
}

func evaluationJob(e evaluable, interval time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:           e.Name(),
		Interval:       interval,
		RunImmediately: true,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := e.Evaluate(ctx, now)
			return err
		},
	}
}

// sources are the snapshot providers the families read from.
type sources struct {
	locations   repository.LocationSource
	readings    repository.ReadingSource
	devices     repository.DeviceSource
	leakDevices repository.LeakDeviceSource
}

// engine holds the enabled families. Each owns its latch store.
type engine struct {
	jobs   []scheduler.Job
	alerts []resources.AlertSource
	leak   *alerting.LeakMonitor
}

func buildEngine(cfg config.AlertingConfig, src sources, sink alerting.Sink, recorder alerting.Recorder) (*engine, error) {
	e := &engine{}

	if cfg.Limits.Enabled {
		family, err := alerting.NewLimitFamily(src.locations, src.readings, alerting.LimitMode(cfg.Limits.Mode), cfg.Limits.Lookback)
		if err != nil {
			return nil, fmt.Errorf("limits family: %w", err)
		}
		evaluator, err := alerting.NewEvaluator[string, alerting.LimitKind, alerting.LimitBreach](family, latch.NewStore[string, alerting.LimitKind](), sink, cfg.Limits.Cooldown,
			alerting.WithRecorder[string, alerting.LimitKind, alerting.LimitBreach](recorder))
		if err != nil {
			return nil, fmt.Errorf("limits evaluator: %w", err)
		}
		e.jobs = append(e.jobs, evaluationJob(evaluator, cfg.Limits.Interval))
		e.alerts = append(e.alerts, evaluator)
	}

	if cfg.Health.Enabled {
		family, err := alerting.NewHealthFamily(src.devices, cfg.Health.InactivityThreshold)
		if err != nil {
			return nil, fmt.Errorf("health family: %w", err)
		}
		evaluator, err := alerting.NewEvaluator[string, alerting.HealthKind, alerting.DeviceHealth](family, latch.NewStore[string, alerting.HealthKind](), sink, cfg.Health.Cooldown,
			alerting.WithRecorder[string, alerting.HealthKind, alerting.DeviceHealth](recorder))
		if err != nil {
			return nil, fmt.Errorf("health evaluator: %w", err)
		}
		e.jobs = append(e.jobs, evaluationJob(evaluator, cfg.Health.Interval))
		e.alerts = append(e.alerts, evaluator)
	}

	if cfg.Leak.Enabled {
		monitor, err := alerting.NewLeakMonitor(src.leakDevices, latch.NewStore[string, alerting.LeakKind](), sink,
			cfg.Leak.Cooldown, cfg.Leak.InactivityWindow, recorder)
		if err != nil {
			return nil, fmt.Errorf("leak monitor: %w", err)
		}
		e.jobs = append(e.jobs, evaluationJob(monitor, cfg.Leak.Interval))
		e.alerts = append(e.alerts, monitor.Evaluator())
		e.leak = monitor
	}

	return e, nil
}
