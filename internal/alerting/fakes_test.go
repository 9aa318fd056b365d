// FilePath: server/watchdog/internal/alerting/fakes_test.go
package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

var (
	t0         = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	errBackend = errors.New("backend unavailable")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []Notification
	err    error
}

func (s *recordingSink) Notify(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, n)
	return s.err
}

func (s *recordingSink) Events() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.events...)
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

func countType(events []Notification, t EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fakeLocations struct {
	locations []models.Location
	err       error
}

func (f *fakeLocations) GetLocations(context.Context) ([]models.Location, error) {
	return f.locations, f.err
}

type fakeReadings struct {
	mu       sync.Mutex
	readings map[string][]models.Reading
	sinces   []time.Time
	err      error
}

func (f *fakeReadings) Add(locationID string, at time.Time, temp float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readings == nil {
		f.readings = make(map[string][]models.Reading)
	}
	f.readings[locationID] = append(f.readings[locationID], models.Reading{
		DeviceID:    "dev-" + locationID,
		LocationID:  locationID,
		Time:        at,
		Temperature: models.Float(temp),
	})
}

func (f *fakeReadings) GetLocationReadingsSince(_ context.Context, locationID string, since time.Time) ([]models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces = append(f.sinces, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Reading
	for _, r := range f.readings[locationID] {
		if r.Time.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeDevices struct {
	devices []models.Device
	err     error
}

func (f *fakeDevices) GetDevices(context.Context, time.Time) ([]models.Device, error) {
	return f.devices, f.err
}

type fakeLeakDevices struct {
	mu      sync.Mutex
	devices []models.LeakDevice
	err     error
}

func (f *fakeLeakDevices) Set(devices ...models.LeakDevice) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *fakeLeakDevices) GetLeakDevices(context.Context) ([]models.LeakDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LeakDevice(nil), f.devices...), f.err
}

type staticFamily struct {
	mu       sync.Mutex
	active   map[latch.Key[string, LimitKind]]bool
	err      error
	observed int
}

func newStaticFamily() *staticFamily {
	return &staticFamily{active: make(map[latch.Key[string, LimitKind]]bool)}
}

func (f *staticFamily) Name() string { return "static" }

func (f *staticFamily) Set(subject string, kind LimitKind, active bool) {
	f.mu.Lock()
	f.active[latch.Key[string, LimitKind]{Subject: subject, Kind: kind}] = active
	f.mu.Unlock()
}

func (f *staticFamily) Observe(context.Context, time.Time, func(latch.Key[string, LimitKind]) bool) (Observations[string, LimitKind, string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed++
	if f.err != nil {
		return nil, f.err
	}
	out := make(Observations[string, LimitKind, string])
	for k, v := range f.active {
		out.Set(k.Subject, k.Kind, v, k.Subject)
	}
	return out, nil
}
