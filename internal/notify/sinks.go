// FilePath: server/watchdog/internal/notify/sinks.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

// LogSink writes rendered notifications to the service log.
type LogSink struct {
	tpl *Template
}

// NewLogSink creates a LogSink.
func NewLogSink(tpl *Template) *LogSink {
	return &LogSink{tpl: tpl}
}

// Notify implements alerting.Sink.
func (s *LogSink) Notify(_ context.Context, n alerting.Notification) error {
	text, err := s.tpl.Render(n)
	if err != nil {
		return err
	}
	switch n.Type {
	case alerting.EventBadInput:
		nuts.L.Warnf("[Notify] %s", text)
	default:
		nuts.L.Infof("[Notify] %s", text)
	}
	return nil
}

type webhookPayload struct {
	MsgType      string                `json:"msgtype"`
	Text         webhookText           `json:"text"`
	Notification alerting.Notification `json:"notification"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookSink posts notifications to an HTTP endpoint.
type WebhookSink struct {
	url    string
	tpl    *Template
	client *http.Client
}

// WebhookOption configures the webhook sink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) WebhookOption {
	return func(s *WebhookSink) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// NewWebhookSink constructs a webhook sink.
func NewWebhookSink(url string, tpl *Template, opts ...WebhookOption) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook sink: empty url")
	}
	s := &WebhookSink{
		url:    url,
		tpl:    tpl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Notify implements alerting.Sink.
func (s *WebhookSink) Notify(ctx context.Context, n alerting.Notification) error {
	text, err := s.tpl.Render(n)
	if err != nil {
		return err
	}
	body, err := json.Marshal(webhookPayload{
		MsgType:      "text",
		Text:         webhookText{Content: text},
		Notification: n,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-ID", n.ID)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sink: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

// Publisher is the subset of the redis client used by RedisSink.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes notifications as JSON on a redis channel so that other
// services (mailers, dashboards) can subscribe.
type RedisSink struct {
	client  Publisher
	channel string
}

// NewRedisSink creates a RedisSink.
func NewRedisSink(client Publisher, channel string) (*RedisSink, error) {
	if client == nil {
		return nil, errors.New("redis sink: nil client")
	}
	if channel == "" {
		return nil, errors.New("redis sink: empty channel")
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// Notify implements alerting.Sink.
func (s *RedisSink) Notify(ctx context.Context, n alerting.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("redis sink: publish to %s: %w", s.channel, err)
	}
	return nil
}

// MultiSink dispatches notifications to every sink. All sinks are attempted;
// their errors are joined.
type MultiSink struct {
	sinks []alerting.Sink
}

// NewMultiSink constructs a MultiSink.
func NewMultiSink(sinks ...alerting.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Notify implements alerting.Sink.
func (m *MultiSink) Notify(ctx context.Context, n alerting.Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, sink := range m.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}
