// FilePath: server/watchdog/internal/alerting/health.go
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
)

// HealthKind is the alert kind of the device-health family.
type HealthKind string

const (
	DeviceInactive   HealthKind = "device_inactive"
	DeviceLowBattery HealthKind = "device_low_battery"
)

// DeviceHealth is the payload of health notifications.
type DeviceHealth struct {
	DeviceID        string        `json:"device_id"`
	DeviceName      string        `json:"device_name"`
	LocationID      string        `json:"location_id"`
	LastSeen        *time.Time    `json:"last_seen,omitempty"`
	Threshold       time.Duration `json:"threshold"`
	BatteryFraction *float64      `json:"battery_fraction,omitempty"`
}

// HealthFamily watches climate devices for silence and low batteries.
type HealthFamily struct {
	devices           repository.DeviceSource
	defaultInactivity time.Duration
}

// NewHealthFamily creates the device-health family. defaultInactivity applies
// to devices without their own threshold.
func NewHealthFamily(devices repository.DeviceSource, defaultInactivity time.Duration) (*HealthFamily, error) {
	if defaultInactivity <= 0 {
		return nil, fmt.Errorf("alerting: inactivity threshold must be positive, got %s", defaultInactivity)
	}
	return &HealthFamily{devices: devices, defaultInactivity: defaultInactivity}, nil
}

// Name implements Family.
func (f *HealthFamily) Name() string { return "health" }

// Observe implements Family. Retired devices produce no observations, so
// their latched alerts clear.
func (f *HealthFamily) Observe(ctx context.Context, now time.Time, _ func(latch.Key[string, HealthKind]) bool) (Observations[string, HealthKind, DeviceHealth], error) {
	devices, err := f.devices.GetDevices(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}

	out := make(Observations[string, HealthKind, DeviceHealth])
	for _, d := range devices {
		if d.Retired {
			continue
		}
		payload := f.payload(d)

		if !d.ExcludeFromInactivity {
			out.Set(d.ID, DeviceInactive, f.inactive(d, now), payload)
		}
		if fraction, ok := d.BatteryFraction(); ok {
			out.Set(d.ID, DeviceLowBattery, fraction < 1, payload)
		}
	}
	return out, nil
}

func (f *HealthFamily) inactive(d models.Device, now time.Time) bool {
	if d.LastReading == nil {
		return true
	}
	return now.Sub(d.LastReading.Time) > d.InactivityThreshold(f.defaultInactivity)
}

func (f *HealthFamily) payload(d models.Device) DeviceHealth {
	p := DeviceHealth{
		DeviceID:   d.ID,
		DeviceName: d.Name,
		LocationID: d.LocationID,
		Threshold:  d.InactivityThreshold(f.defaultInactivity),
	}
	if d.LastReading != nil {
		seen := d.LastReading.Time
		p.LastSeen = &seen
	}
	if fraction, ok := d.BatteryFraction(); ok {
		p.BatteryFraction = &fraction
	}
	return p
}
