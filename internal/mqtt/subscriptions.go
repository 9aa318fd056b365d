// FilePath: server/watchdog/internal/mqtt/subscriptions.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	nuts "github.com/vaudience/go-nuts"
)

// MessageHandler receives one message. It may be called concurrently.
type MessageHandler func(topic string, payload []byte)

// Client is the subset of an MQTT client the subscription manager needs.
type Client interface {
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topics ...string) error
}

// TopicSource returns the desired set of topics.
type TopicSource interface {
	DesiredTopics(ctx context.Context) (map[string]struct{}, error)
}

// SubscriptionManager keeps the live subscriptions of a client equal to the
// desired topic set. Refreshes are serialized.
type SubscriptionManager struct {
	client  Client
	source  TopicSource
	handler MessageHandler

	mu      sync.Mutex
	current map[string]struct{}
}

// NewSubscriptionManager creates a manager with no live subscriptions.
func NewSubscriptionManager(client Client, source TopicSource, handler MessageHandler) *SubscriptionManager {
	return &SubscriptionManager{
		client:  client,
		source:  source,
		handler: handler,
		current: make(map[string]struct{}),
	}
}

// Refresh fetches the desired topics, unsubscribes the stale ones and then
// subscribes the new ones. On a partial failure the recorded live set
// reflects exactly the operations that succeeded.
func (m *SubscriptionManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	desired, err := m.source.DesiredTopics(ctx)
	if err != nil {
		return fmt.Errorf("fetch desired topics: %w", err)
	}

	toUnsubscribe := difference(m.current, desired)
	toSubscribe := difference(desired, m.current)

	if len(toUnsubscribe) > 0 {
		if err := m.client.Unsubscribe(toUnsubscribe...); err != nil {
			return fmt.Errorf("unsubscribe %d topics: %w", len(toUnsubscribe), err)
		}
		for _, topic := range toUnsubscribe {
			delete(m.current, topic)
		}
	}

	var errs []error
	for _, topic := range toSubscribe {
		if err := m.client.Subscribe(topic, m.handler); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", topic, err))
			continue
		}
		m.current[topic] = struct{}{}
	}

	if len(toUnsubscribe)+len(toSubscribe) > 0 {
		nuts.L.Infof("[MQTT] Subscriptions refreshed: -%d +%d, %d live", len(toUnsubscribe), len(toSubscribe), len(m.current))
	}
	return errors.Join(errs...)
}

// Resubscribe forgets the live set and refreshes. Used after the broker
// session was lost.
func (m *SubscriptionManager) Resubscribe(ctx context.Context) error {
	m.mu.Lock()
	m.current = make(map[string]struct{})
	m.mu.Unlock()
	return m.Refresh(ctx)
}

// Current returns the live topics in sorted order.
func (m *SubscriptionManager) Current() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.current))
	for topic := range m.current {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
