// FilePath: server/watchdog/internal/models/models.location.go
package models

import "time"

// Location groups devices and carries the temperature limits checked by the
// limit-breach evaluator. Limits are optional; a nil limit is never breached.
type Location struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Timezone       string    `json:"timezone" db:"timezone"`
	MinTemperature *float64  `json:"min_temperature,omitempty" db:"min_temperature"`
	MaxTemperature *float64  `json:"max_temperature,omitempty" db:"max_temperature"`
	NotifyEmail    string    `json:"notify_email,omitempty" db:"notify_email" readxs:"owner,system,superadmin" writexs:"owner,system,superadmin"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// HasLimits reports whether at least one temperature limit is configured.
func (l Location) HasLimits() bool {
	return l.MinTemperature != nil || l.MaxTemperature != nil
}

// BelowMin reports whether value violates the configured minimum.
func (l Location) BelowMin(value float64) bool {
	return l.MinTemperature != nil && value < *l.MinTemperature
}

// AboveMax reports whether value violates the configured maximum.
func (l Location) AboveMax(value float64) bool {
	return l.MaxTemperature != nil && value > *l.MaxTemperature
}
