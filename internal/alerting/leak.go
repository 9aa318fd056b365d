// FilePath: server/watchdog/internal/alerting/leak.go
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// LeakKind is the alert kind of the water-leak family.
type LeakKind string

const (
	LeakDetected         LeakKind = "leak_detected"
	LeakSensorLowBattery LeakKind = "leak_sensor_low_battery"
	LeakSensorInactive   LeakKind = "leak_sensor_inactive"
)

// BadInputKind is the kind carried by bad-input notifications.
const BadInputKind = "malformed_payload"

var (
	// ErrMalformedPayload marks a leak payload that is not a JSON object.
	ErrMalformedPayload = errors.New("alerting: malformed leak payload")
	// ErrUnknownDevice marks a message from a device name that is not known.
	ErrUnknownDevice = errors.New("alerting: unknown leak device")
)

// MissingFieldError reports a leak payload without a required field. A missing
// leak field is never read as "no leak".
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("alerting: leak payload is missing required field %q", e.Field)
}

// LeakState is the decoded content of one leak sensor message.
type LeakState struct {
	Leak        bool     `json:"water_leak"`
	BatteryLow  bool     `json:"battery_low"`
	Battery     *float64 `json:"battery,omitempty"`
	LinkQuality *int     `json:"linkquality,omitempty"`
}

type leakPayload struct {
	WaterLeak   *bool    `json:"water_leak"`
	BatteryLow  *bool    `json:"battery_low"`
	Battery     *float64 `json:"battery"`
	LinkQuality *int     `json:"linkquality"`
}

// ParseLeakPayload decodes a leak sensor message. It fails with a
// *MissingFieldError when water_leak is absent and with ErrMalformedPayload
// when the body is not a JSON object. An absent battery_low reads as false.
func ParseLeakPayload(body []byte) (LeakState, error) {
	var p leakPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return LeakState{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.WaterLeak == nil {
		return LeakState{}, &MissingFieldError{Field: "water_leak"}
	}
	s := LeakState{
		Leak:        *p.WaterLeak,
		Battery:     p.Battery,
		LinkQuality: p.LinkQuality,
	}
	if p.BatteryLow != nil {
		s.BatteryLow = *p.BatteryLow
	}
	return s, nil
}

// LeakReport is the payload of leak notifications.
type LeakReport struct {
	DeviceID    string        `json:"device_id"`
	DeviceName  string        `json:"device_name"`
	LocationID  string        `json:"location_id"`
	State       *LeakState    `json:"state,omitempty"`
	LastCheckIn *time.Time    `json:"last_check_in,omitempty"`
	Window      time.Duration `json:"window,omitempty"`
}

// BadInput is the payload of bad-input notifications.
type BadInput struct {
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name"`
	Reason     string `json:"reason"`
	Raw        string `json:"raw"`
}

// CheckIns tracks the last message time per device name.
type CheckIns struct {
	seen sync.Map // string -> time.Time
}

// Touch records a check-in.
func (c *CheckIns) Touch(name string, at time.Time) {
	c.seen.Store(name, at)
}

// Last returns the last check-in, starting the clock at now for a name that
// has never been seen.
func (c *CheckIns) Last(name string, now time.Time) time.Time {
	v, _ := c.seen.LoadOrStore(name, now)
	return v.(time.Time)
}

// Reset replaces the tracked names with names, all checked in at now.
func (c *CheckIns) Reset(names []string, now time.Time) {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
		c.seen.Store(n, now)
	}
	c.seen.Range(func(k, _ any) bool {
		if _, ok := keep[k.(string)]; !ok {
			c.seen.Delete(k)
		}
		return true
	})
}

// LeakMonitor is the water-leak family. Payload-driven kinds are reconciled on
// every message; LeakSensorInactive and reminders are handled on ticks.
type LeakMonitor struct {
	devices           repository.LeakDeviceSource
	defaultInactivity time.Duration
	clock             Clock
	evaluator         *Evaluator[string, LeakKind, LeakReport]

	states   sync.Map // device name -> LeakState
	byName   sync.Map // device name -> models.LeakDevice
	locks    sync.Map // device name -> *sync.Mutex
	checkIns CheckIns
}

// LeakOption customizes a LeakMonitor.
type LeakOption func(*LeakMonitor)

// WithLeakClock sets the clock used for message arrival times.
func WithLeakClock(c Clock) LeakOption {
	return func(m *LeakMonitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewLeakMonitor creates the leak family with its own evaluator.
func NewLeakMonitor(devices repository.LeakDeviceSource, store *latch.Store[string, LeakKind], sink Sink, cooldown, defaultInactivity time.Duration, recorder Recorder, opts ...LeakOption) (*LeakMonitor, error) {
	if defaultInactivity <= 0 {
		return nil, fmt.Errorf("alerting: leak inactivity window must be positive, got %s", defaultInactivity)
	}
	m := &LeakMonitor{
		devices:           devices,
		defaultInactivity: defaultInactivity,
		clock:             SystemClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	ev, err := NewEvaluator[string, LeakKind, LeakReport](m, store, sink, cooldown, WithRecorder[string, LeakKind, LeakReport](recorder))
	if err != nil {
		return nil, err
	}
	m.evaluator = ev
	return m, nil
}

// Name implements Family.
func (m *LeakMonitor) Name() string { return "leak" }

// Evaluator returns the evaluator driving this family.
func (m *LeakMonitor) Evaluator() *Evaluator[string, LeakKind, LeakReport] {
	return m.evaluator
}

// Evaluate runs a tick evaluation. Each device is observed and reconciled
// while holding the lock Ingest takes for it, so a message is applied either
// before or after the tick's view of that device, never in between.
func (m *LeakMonitor) Evaluate(ctx context.Context, now time.Time) ([]Notification, error) {
	started := time.Now()
	devices, err := m.devices.GetLeakDevices(ctx)
	if err != nil {
		m.evaluator.recorder.EvaluationFailed(m.Name())
		return nil, fmt.Errorf("%w: %s: fetch leak devices: %v", ErrFetch, m.Name(), err)
	}
	m.SetDevices(devices, now)

	var events []Notification
	known := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		known[d.ID] = struct{}{}
		events = append(events, m.reconcileDevice(ctx, d, now)...)
	}
	// Devices that left the fleet have nothing left to observe.
	events = append(events, m.evaluator.Reconcile(ctx, now, nil, func(k latch.Key[string, LeakKind]) bool {
		_, ok := known[k.Subject]
		return !ok
	})...)
	m.evaluator.recorder.EvaluationCompleted(m.Name(), time.Since(started), m.evaluator.store.Len())
	return events, nil
}

func (m *LeakMonitor) reconcileDevice(ctx context.Context, d models.LeakDevice, now time.Time) []Notification {
	unlock := m.lock(d.Name)
	defer unlock()
	observed := make(Observations[string, LeakKind, LeakReport])
	m.observeDevice(observed, d, now)
	return m.evaluator.Reconcile(ctx, now, observed, func(k latch.Key[string, LeakKind]) bool {
		return k.Subject == d.ID
	})
}

// lock serializes state changes and reconciles for one device name. Mutexes
// are never removed so that every caller for a name shares the same one.
func (m *LeakMonitor) lock(name string) func() {
	v, _ := m.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// SetDevices replaces the known devices and resets check-ins when the set of
// device names changed. It reports whether the name list changed.
func (m *LeakMonitor) SetDevices(devices []models.LeakDevice, now time.Time) bool {
	changed := false
	names := make([]string, 0, len(devices))
	incoming := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
		incoming[d.Name] = struct{}{}
		if _, loaded := m.byName.Swap(d.Name, d); !loaded {
			changed = true
		}
	}
	m.byName.Range(func(k, _ any) bool {
		if _, ok := incoming[k.(string)]; !ok {
			unlock := m.lock(k.(string))
			m.byName.Delete(k)
			m.states.Delete(k)
			unlock()
			changed = true
		}
		return true
	})
	if changed {
		m.ResetCheckIns(names, now)
	}
	return changed
}

// ResetCheckIns restarts inactivity tracking for names.
func (m *LeakMonitor) ResetCheckIns(names []string, now time.Time) {
	m.checkIns.Reset(names, now)
	nuts.L.Infof("[LeakMonitor] Reset check-ins for %d devices", len(names))
}

// Ingest handles one message from the device called name. A malformed
// payload produces a bad-input notification and leaves latches untouched.
func (m *LeakMonitor) Ingest(ctx context.Context, name string, body []byte) ([]Notification, error) {
	unlock := m.lock(name)
	defer unlock()

	now := m.clock.Now()
	v, ok := m.byName.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	dev := v.(models.LeakDevice)
	if dev.Retired {
		nuts.L.Debugf("[LeakMonitor] Ignoring message from retired device %s", name)
		return nil, nil
	}

	state, err := ParseLeakPayload(body)
	if err != nil {
		n := Notification{
			ID:      nuts.NID("ntf", 12),
			Type:    EventBadInput,
			Family:  m.Name(),
			Subject: dev.ID,
			Kind:    BadInputKind,
			At:      now,
			Payload: BadInput{DeviceID: dev.ID, DeviceName: name, Reason: err.Error(), Raw: string(body)},
		}
		m.evaluator.Notify(ctx, n)
		return []Notification{n}, err
	}

	m.checkIns.Touch(name, now)
	m.states.Store(name, state)

	observed := make(Observations[string, LeakKind, LeakReport])
	m.observePayload(observed, dev, state, now)
	scope := func(k latch.Key[string, LeakKind]) bool {
		return k.Subject == dev.ID && k.Kind != LeakSensorInactive
	}
	return m.evaluator.Reconcile(ctx, now, observed, scope), nil
}

// Observe implements Family. It reports the whole fleet at once; ticks go
// through Evaluate, which observes and reconciles one device at a time.
func (m *LeakMonitor) Observe(ctx context.Context, now time.Time, _ func(latch.Key[string, LeakKind]) bool) (Observations[string, LeakKind, LeakReport], error) {
	devices, err := m.devices.GetLeakDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch leak devices: %w", err)
	}
	m.SetDevices(devices, now)

	out := make(Observations[string, LeakKind, LeakReport])
	for _, d := range devices {
		unlock := m.lock(d.Name)
		m.observeDevice(out, d, now)
		unlock()
	}
	return out, nil
}

func (m *LeakMonitor) observeDevice(out Observations[string, LeakKind, LeakReport], d models.LeakDevice, now time.Time) {
	if d.Retired {
		return
	}
	window := d.InactivityWindow(m.defaultInactivity)
	last := m.checkIns.Last(d.Name, now)
	report := m.report(d, now)
	report.Window = window
	out.Set(d.ID, LeakSensorInactive, now.Sub(last) > window, report)

	if v, ok := m.states.Load(d.Name); ok {
		m.observePayload(out, d, v.(LeakState), now)
	}
}

func (m *LeakMonitor) observePayload(out Observations[string, LeakKind, LeakReport], d models.LeakDevice, s LeakState, now time.Time) {
	report := m.report(d, now)
	report.State = &s
	out.Set(d.ID, LeakDetected, s.Leak, report)
	out.Set(d.ID, LeakSensorLowBattery, s.BatteryLow, report)
}

func (m *LeakMonitor) report(d models.LeakDevice, now time.Time) LeakReport {
	last := m.checkIns.Last(d.Name, now)
	return LeakReport{
		DeviceID:    d.ID,
		DeviceName:  d.Name,
		LocationID:  d.LocationID,
		LastCheckIn: &last,
	}
}
