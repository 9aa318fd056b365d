// FilePath: server/watchdog/internal/models/models.device.go
package models

import "time"

// DefaultInactivityThreshold applies to devices without their own threshold.
const DefaultInactivityThreshold = 20 * time.Minute

type DeviceType string

const (
	ClimateSensor DeviceType = "climate"
	LeakSensor    DeviceType = "leak"
)

// Device is a telemetry-producing climate sensor (temperature, humidity, battery).
type Device struct {
	ID                    string    `json:"id" db:"id"`
	LocationID            string    `json:"location_id" db:"location_id"`
	Name                  string    `json:"name" db:"name"`
	Model                 string    `json:"model" db:"model"`
	Retired               bool      `json:"retired" db:"retired" writexs:"owner,system,superadmin"`
	ExcludeFromInactivity bool      `json:"exclude_from_inactivity" db:"exclude_from_inactivity" writexs:"owner,system,superadmin"`
	InactivityMinutes     int       `json:"inactivity_minutes" db:"inactivity_minutes"`
	BatteryOkLevel        *float64  `json:"battery_ok_level,omitempty" db:"battery_ok_level"`
	LastReading           *Reading  `json:"last_reading,omitempty" db:"-"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// InactivityThreshold returns the configured threshold or fallback when unset.
func (d Device) InactivityThreshold(fallback time.Duration) time.Duration {
	if d.InactivityMinutes > 0 {
		return time.Duration(d.InactivityMinutes) * time.Minute
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultInactivityThreshold
}

// BatteryFraction is the last battery reading relative to the device's ok
// level. A value below 1 means the battery is below the ok level.
func (d Device) BatteryFraction() (float64, bool) {
	if d.LastReading == nil || d.LastReading.Battery == nil {
		return 0, false
	}
	if d.BatteryOkLevel == nil || *d.BatteryOkLevel <= 0 {
		return 0, false
	}
	return *d.LastReading.Battery / *d.BatteryOkLevel, true
}

// LeakDevice is a water-leak sensor reporting over MQTT. Its Name is the MQTT
// identity (topic suffix); alerts are keyed by ID.
type LeakDevice struct {
	ID                string    `json:"id" db:"id"`
	LocationID        string    `json:"location_id" db:"location_id"`
	Name              string    `json:"name" db:"name"`
	Retired           bool      `json:"retired" db:"retired"`
	InactivityMinutes int       `json:"inactivity_minutes" db:"inactivity_minutes"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// InactivityWindow returns the configured window or fallback when unset.
func (d LeakDevice) InactivityWindow(fallback time.Duration) time.Duration {
	if d.InactivityMinutes > 0 {
		return time.Duration(d.InactivityMinutes) * time.Minute
	}
	return fallback
}
