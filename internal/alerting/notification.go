// FilePath: server/watchdog/internal/alerting/notification.go
package alerting

import (
	"context"
	"time"
)

// EventType is the lifecycle step a notification announces.
type EventType string

const (
	EventRaise    EventType = "raise"
	EventClear    EventType = "clear"
	EventBadInput EventType = "bad_input"
)

// Notification is handed to a Sink for every raise, clear or bad-input event.
type Notification struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Family   string    `json:"family"`
	Subject  string    `json:"subject"`
	Kind     string    `json:"kind"`
	Reminder bool      `json:"reminder,omitempty"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// Sink renders and dispatches notifications. A slow sink delays only the
// reconcile that called it.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Recorder receives engine measurements. The monitoring package provides the
// prometheus-backed implementation.
type Recorder interface {
	NotificationEmitted(family string, eventType EventType, reminder bool)
	NotificationFailed(family string)
	EvaluationFailed(family string)
	EvaluationCompleted(family string, took time.Duration, latched int)
}

type nopRecorder struct{}

func (nopRecorder) NotificationEmitted(string, EventType, bool)    {}
func (nopRecorder) NotificationFailed(string)                      {}
func (nopRecorder) EvaluationFailed(string)                        {}
func (nopRecorder) EvaluationCompleted(string, time.Duration, int) {}
