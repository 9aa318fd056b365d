// FilePath: server/watchdog/internal/alerting/leak_test.go
package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/latch"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
)

const leakWindow = 30 * time.Minute

func kitchen() models.LeakDevice {
	return models.LeakDevice{ID: "leak-1", LocationID: "loc-1", Name: "kitchen_sink"}
}

func newTestLeakMonitor(t *testing.T, devices *fakeLeakDevices) (*LeakMonitor, *latch.Store[string, LeakKind], *recordingSink, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	store := latch.NewStore[string, LeakKind]()
	sink := &recordingSink{}
	m, err := NewLeakMonitor(devices, store, sink, cooldown, leakWindow, nil, WithLeakClock(clock))
	require.NoError(t, err)
	dev, err := devices.GetLeakDevices(context.Background())
	require.NoError(t, err)
	m.SetDevices(dev, t0)
	return m, store, sink, clock
}

func TestParseLeakPayload(t *testing.T) {
	s, err := ParseLeakPayload([]byte(`{"water_leak":true,"battery_low":false,"battery":87,"linkquality":120}`))
	require.NoError(t, err)
	assert.True(t, s.Leak)
	assert.False(t, s.BatteryLow)
	assert.Equal(t, 87.0, *s.Battery)
	assert.Equal(t, 120, *s.LinkQuality)

	s, err = ParseLeakPayload([]byte(`{"water_leak":false}`))
	require.NoError(t, err)
	assert.False(t, s.Leak)
	assert.False(t, s.BatteryLow)
}

func TestParseLeakPayloadMissingField(t *testing.T) {
	_, err := ParseLeakPayload([]byte(`{"battery_low":true}`))
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "water_leak", missing.Field)

	_, err = ParseLeakPayload([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestLeakIngestRaisesAndClearsPerMessage(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, store, _, clock := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	clock.Set(t0.Add(time.Minute))
	events, err := m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true,"battery_low":true}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(LeakDetected), events[0].Kind)
	assert.Equal(t, string(LeakSensorLowBattery), events[1].Kind)
	assert.Equal(t, "leak-1", events[0].Subject)

	clock.Set(t0.Add(2 * time.Minute))
	events, err = m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true,"battery_low":true}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	clock.Set(t0.Add(3 * time.Minute))
	events, err = m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":false,"battery_low":true}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventClear, events[0].Type)
	assert.Equal(t, string(LeakDetected), events[0].Kind)
	report := events[0].Payload.(LeakReport)
	require.NotNil(t, report.State)
	assert.False(t, report.State.Leak)

	_, ok := store.TryGet("leak-1", LeakSensorLowBattery)
	assert.True(t, ok)
}

func TestLeakIngestMissingFieldEmitsBadInput(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, store, sink, _ := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	_, err := m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true}`))
	require.NoError(t, err)
	sink.Reset()

	events, err := m.Ingest(ctx, "kitchen_sink", []byte(`{"battery_low":false}`))
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Len(t, events, 1)
	assert.Equal(t, EventBadInput, events[0].Type)
	assert.Equal(t, BadInputKind, events[0].Kind)
	assert.Equal(t, "kitchen_sink", events[0].Payload.(BadInput).DeviceName)
	assert.Len(t, sink.Events(), 1)

	_, ok := store.TryGet("leak-1", LeakDetected)
	assert.True(t, ok, "a missing field must not clear a leak")
}

func TestLeakIngestUnknownDevice(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, _, sink, _ := newTestLeakMonitor(t, devices)

	_, err := m.Ingest(context.Background(), "garage", []byte(`{"water_leak":true}`))
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Empty(t, sink.Events())
}

func TestLeakSensorInactiveOnTick(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, store, _, clock := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	events, err := m.Evaluate(ctx, t0.Add(leakWindow))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = m.Evaluate(ctx, t0.Add(leakWindow+time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(LeakSensorInactive), events[0].Kind)

	clock.Set(t0.Add(leakWindow + 2*time.Minute))
	events, err = m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":false}`))
	require.NoError(t, err)
	assert.Empty(t, events, "inactivity is reconciled on ticks only")
	_, ok := store.TryGet("leak-1", LeakSensorInactive)
	assert.True(t, ok)

	events, err = m.Evaluate(ctx, t0.Add(leakWindow+3*time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventClear, events[0].Type)
	assert.Equal(t, string(LeakSensorInactive), events[0].Kind)
}

func TestLeakTickRemindsOngoingLeak(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, _, _, clock := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	clock.Set(t0.Add(time.Minute))
	_, err := m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true}`))
	require.NoError(t, err)

	at := t0.Add(time.Minute + cooldown)
	clock.Set(at.Add(-time.Minute))
	_, err = m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true}`))
	require.NoError(t, err)

	events, err := m.Evaluate(ctx, at)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(LeakDetected), events[0].Kind)
	assert.True(t, events[0].Reminder)
}

func TestLeakDeviceListChangeResetsCheckIns(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, _, _, _ := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	bath := models.LeakDevice{ID: "leak-2", LocationID: "loc-1", Name: "bathroom"}
	devices.Set(kitchen(), bath)

	// The new name resets every check-in to this tick.
	events, err := m.Evaluate(ctx, t0.Add(leakWindow+time.Minute))
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.False(t, m.SetDevices([]models.LeakDevice{kitchen(), bath}, t0.Add(time.Hour)))
	assert.True(t, m.SetDevices([]models.LeakDevice{bath}, t0.Add(time.Hour)))

	_, err = m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true}`))
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestLeakFetchFailureKeepsLatches(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, store, _, _ := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	_, err := m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true}`))
	require.NoError(t, err)

	devices.mu.Lock()
	devices.err = errBackend
	devices.mu.Unlock()
	_, err = m.Evaluate(ctx, t0.Add(3*cooldown))
	assert.ErrorIs(t, err, ErrFetch)
	_, ok := store.TryGet("leak-1", LeakDetected)
	assert.True(t, ok)
}

func leakFleet(size int) []models.LeakDevice {
	fleet := make([]models.LeakDevice, 0, size)
	for i := 0; i < size; i++ {
		name := fmt.Sprintf("n%04d", i)
		fleet = append(fleet, models.LeakDevice{ID: "leak-" + name, LocationID: "loc-1", Name: name})
	}
	return fleet
}

func countKind(events []Notification, t EventType, subject string, kind LeakKind) int {
	n := 0
	for _, e := range events {
		if e.Type == t && e.Subject == subject && e.Kind == string(kind) {
			n++
		}
	}
	return n
}

// runTickWithMessage runs a tick and a message for n0000 concurrently, the
// message delayed by delay.
func runTickWithMessage(t *testing.T, m *LeakMonitor, body string, delay time.Duration) {
	t.Helper()
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := m.Evaluate(ctx, t0)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(delay)
		_, err := m.Ingest(ctx, "n0000", []byte(body))
		assert.NoError(t, err)
	}()
	wg.Wait()
}

func TestLeakTickDoesNotClearLeakRaisedDuringTick(t *testing.T) {
	for trial := 0; trial < 100; trial++ {
		devices := &fakeLeakDevices{}
		devices.Set(leakFleet(1000)...)
		m, store, sink, _ := newTestLeakMonitor(t, devices)
		_, err := m.Ingest(context.Background(), "n0000", []byte(`{"water_leak":false}`))
		require.NoError(t, err)

		runTickWithMessage(t, m, `{"water_leak":true}`, time.Duration(trial)*10*time.Microsecond)

		events := sink.Events()
		require.Equal(t, 0, countKind(events, EventClear, "leak-n0000", LeakDetected), "trial %d", trial)
		require.Equal(t, 1, countKind(events, EventRaise, "leak-n0000", LeakDetected), "trial %d", trial)
		_, ok := store.TryGet("leak-n0000", LeakDetected)
		require.True(t, ok, "trial %d", trial)
	}
}

func TestLeakTickDoesNotRelatchLeakClearedDuringTick(t *testing.T) {
	for trial := 0; trial < 100; trial++ {
		devices := &fakeLeakDevices{}
		devices.Set(leakFleet(1000)...)
		m, store, sink, _ := newTestLeakMonitor(t, devices)
		_, err := m.Ingest(context.Background(), "n0000", []byte(`{"water_leak":true}`))
		require.NoError(t, err)
		sink.Reset()

		runTickWithMessage(t, m, `{"water_leak":false}`, time.Duration(trial)*10*time.Microsecond)

		events := sink.Events()
		require.Equal(t, 1, countKind(events, EventClear, "leak-n0000", LeakDetected), "trial %d", trial)
		require.Equal(t, 0, countKind(events, EventRaise, "leak-n0000", LeakDetected), "trial %d", trial)
		_, ok := store.TryGet("leak-n0000", LeakDetected)
		require.False(t, ok, "trial %d", trial)
	}
}

func TestLeakTickClearsDevicesRemovedFromFleet(t *testing.T) {
	devices := &fakeLeakDevices{}
	devices.Set(kitchen())
	m, store, _, _ := newTestLeakMonitor(t, devices)
	ctx := context.Background()

	_, err := m.Ingest(ctx, "kitchen_sink", []byte(`{"water_leak":true}`))
	require.NoError(t, err)

	devices.Set()
	events, err := m.Evaluate(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventClear, events[0].Type)
	assert.Equal(t, 0, store.Len())
}
