// FilePath: server/watchdog/internal/mqtt/paho.go
package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"
)

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	ActionTimeout  time.Duration
}

// PahoClient adapts a paho client to Client.
type PahoClient struct {
	client  paho.Client
	qos     byte
	timeout time.Duration

	mu        sync.Mutex
	onConnect func()
}

// Connect dials the broker. Messages are delivered on independent goroutines.
func Connect(cfg ClientConfig) (*PahoClient, error) {
	p := &PahoClient{qos: cfg.QoS, timeout: cfg.ActionTimeout}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = nuts.NID("watchdog", 8)
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetOnConnectHandler(func(paho.Client) {
			nuts.L.Infof("[MQTT] Connected to %s", cfg.Broker)
			p.mu.Lock()
			hook := p.onConnect
			p.mu.Unlock()
			if hook != nil {
				go hook()
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			nuts.L.Warnf("[MQTT] Connection to %s lost: %v", cfg.Broker, err)
		})
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return nil, fmt.Errorf("connect to %s: timeout after %s", cfg.Broker, p.timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return p, nil
}

// OnConnect registers a hook run after every (re)connect.
func (p *PahoClient) OnConnect(hook func()) {
	p.mu.Lock()
	p.onConnect = hook
	p.mu.Unlock()
}

// Subscribe implements Client.
func (p *PahoClient) Subscribe(topic string, handler MessageHandler) error {
	token := p.client.Subscribe(topic, p.qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	return p.wait(token, "subscribe "+topic)
}

// Unsubscribe implements Client.
func (p *PahoClient) Unsubscribe(topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	return p.wait(p.client.Unsubscribe(topics...), fmt.Sprintf("unsubscribe %d topics", len(topics)))
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *PahoClient) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects, waiting up to quiesce for in-flight work.
func (p *PahoClient) Close(quiesce time.Duration) {
	p.client.Disconnect(uint(quiesce / time.Millisecond))
}

func (p *PahoClient) wait(token paho.Token, what string) error {
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%s: timeout after %s", what, p.timeout)
	}
	return token.Error()
}
