// FilePath: server/watchdog/internal/mqtt/leak.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/models"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Message results reported to the recorder.
const (
	ResultOK       = "ok"
	ResultBadInput = "bad_input"
	ResultUnknown  = "unknown_device"
	ResultError    = "error"
)

// LeakIngester is the part of the leak monitor used by the MQTT layer.
type LeakIngester interface {
	Ingest(ctx context.Context, name string, body []byte) ([]alerting.Notification, error)
	SetDevices(devices []models.LeakDevice, now time.Time) bool
}

// MessageRecorder counts handled messages by result.
type MessageRecorder interface {
	LeakMessage(result string)
}

// LeakTopics maps leak devices to their MQTT topics, <prefix>/<device name>.
type LeakTopics struct {
	prefix   string
	devices  repository.LeakDeviceSource
	monitor  LeakIngester
	clock    alerting.Clock
	recorder MessageRecorder
}

// NewLeakTopics creates the topic mapping. recorder may be nil.
func NewLeakTopics(prefix string, devices repository.LeakDeviceSource, monitor LeakIngester, recorder MessageRecorder) *LeakTopics {
	return &LeakTopics{
		prefix:   strings.TrimSuffix(prefix, "/"),
		devices:  devices,
		monitor:  monitor,
		clock:    alerting.SystemClock{},
		recorder: recorder,
	}
}

// Topic returns the topic of a device name.
func (l *LeakTopics) Topic(name string) string {
	return l.prefix + "/" + name
}

// DeviceName extracts the device name from a topic.
func (l *LeakTopics) DeviceName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, l.prefix+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// DesiredTopics implements TopicSource. It also hands the fetched device list
// to the monitor, which resets check-ins when the identity list changed.
func (l *LeakTopics) DesiredTopics(ctx context.Context) (map[string]struct{}, error) {
	devices, err := l.devices.GetLeakDevices(ctx)
	if err != nil {
		return nil, err
	}
	l.monitor.SetDevices(devices, l.clock.Now())

	out := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		if d.Retired || d.Name == "" {
			continue
		}
		out[l.Topic(d.Name)] = struct{}{}
	}
	return out, nil
}

// Handler returns the message handler feeding the leak monitor.
func (l *LeakTopics) Handler(ctx context.Context) MessageHandler {
	return func(topic string, payload []byte) {
		l.record(l.handle(ctx, topic, payload))
	}
}

func (l *LeakTopics) handle(ctx context.Context, topic string, payload []byte) string {
	name, ok := l.DeviceName(topic)
	if !ok {
		nuts.L.Warnf("[MQTT] Ignoring message on unexpected topic %s", topic)
		return ResultUnknown
	}
	_, err := l.monitor.Ingest(ctx, name, payload)
	var missing *alerting.MissingFieldError
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &missing), errors.Is(err, alerting.ErrMalformedPayload):
		nuts.L.Warnf("[MQTT] Bad payload from %s: %v", name, err)
		return ResultBadInput
	case errors.Is(err, alerting.ErrUnknownDevice):
		nuts.L.Warnf("[MQTT] Message from unknown leak device %s", name)
		return ResultUnknown
	default:
		nuts.L.Errorf("[MQTT] Failed to handle message on %s: %v", topic, fmt.Errorf("ingest: %w", err))
		return ResultError
	}
}

func (l *LeakTopics) record(result string) {
	if l.recorder != nil {
		l.recorder.LeakMessage(result)
	}
}
