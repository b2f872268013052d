// Package mqtt carries readings, commands, alerts and operator messages
// between the greenhouse nodes over an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"greenhouse_control/internal/config"
	"greenhouse_control/internal/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var (
	// ErrPublishTimeout means the broker did not acknowledge in time.
	ErrPublishTimeout = errors.New("mqtt publish not acknowledged in time")
	// ErrNotConnected is returned when publishing without a broker session.
	ErrNotConnected = errors.New("mqtt client not connected")
)

const defaultPublishTimeout = 2 * time.Second

// PubSub is what the node components need from a broker session.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// Client wraps a paho client with context-aware publishing. Subscriptions
// are remembered and restored on every (re)connect, since a clean session
// loses them.
type Client struct {
	pc      paho.Client
	qos     byte
	timeout time.Duration
	broker  string
	log     *logger.Logger

	mu   sync.Mutex
	subs map[string]paho.MessageHandler
}

var _ PubSub = (*Client)(nil)

// NewClient builds a client for cfg. clientID overrides cfg.ClientID when set,
// so the three nodes can share one config file.
func NewClient(cfg config.MQTTConfig, clientID string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if clientID == "" {
		clientID = cfg.ClientID
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)

	if strings.HasPrefix(cfg.Broker, "ssl://") || strings.HasPrefix(cfg.Broker, "wss://") {
		log.Infow("mqtt_tls_enabled", "broker", cfg.Broker)
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warnw("mqtt_connection_lost", "error", err)
	})
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		log.Infow("mqtt_reconnecting", "broker", cfg.Broker)
	})

	c := newClient(nil, cfg, log)
	opts.SetOnConnectHandler(func(pc paho.Client) {
		log.Infow("mqtt_connected", "broker", cfg.Broker, "client_id", clientID)
		c.resubscribe(pc)
	})
	c.pc = paho.NewClient(opts)
	return c
}

func newClient(pc paho.Client, cfg config.MQTTConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Client{
		pc:      pc,
		qos:     cfg.QoS,
		timeout: timeout,
		broker:  cfg.Broker,
		log:     log,
		subs:    map[string]paho.MessageHandler{},
	}
}

// Connect starts the session. With connect-retry enabled the token completes
// on the first successful connection, so the wait is bounded by ctx.
func (c *Client) Connect(ctx context.Context) error {
	tok := c.pc.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return fmt.Errorf("connect to %s: %w", c.broker, ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", c.broker, err)
	}
	return nil
}

// Disconnect closes the session after letting in-flight work finish.
func (c *Client) Disconnect() {
	c.pc.Disconnect(250)
	c.log.Infow("mqtt_disconnected", "broker", c.broker)
}

// Publish sends payload and waits for the broker acknowledgement
// (PUBACK at QoS 1) within the publish timeout.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.pc.IsConnectionOpen() {
		return ErrNotConnected
	}
	tok := c.pc.Publish(topic, c.qos, false, payload)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. When the session is down the
// subscription is made on the next connect. Messages are delivered in order
// on the client's router goroutine; handlers must not block for long.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	h := func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()

	if !c.pc.IsConnected() {
		c.log.Infow("mqtt_subscribe_deferred", "topic", topic)
		return nil
	}
	return c.subscribe(c.pc, topic, h)
}

func (c *Client) subscribe(pc paho.Client, topic string, h paho.MessageHandler) error {
	tok := pc.Subscribe(topic, c.qos, h)
	if !tok.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe %s: %w", topic, ErrPublishTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.log.Infow("mqtt_subscribed", "topic", topic)
	return nil
}

// resubscribe restores every registered subscription on a fresh session.
func (c *Client) resubscribe(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		if err := c.subscribe(pc, topic, h); err != nil {
			c.log.Warnw("mqtt_resubscribe_failed", "topic", topic, "error", err)
		}
	}
}
