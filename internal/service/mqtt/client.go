package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"sorter/internal/logger"
)

// Handler receives the payload of a message on a subscribed topic.
// It runs on the paho callback goroutine and must not block.
type Handler func(topic string, payload []byte)

// Options configures a Client.
type Options struct {
	Broker         string
	ClientID       string
	PublishTimeout time.Duration
}

// Client is a thin wrapper around a paho client that resubscribes on reconnect.
type Client struct {
	opts   Options
	client paho.Client
	logger *logger.Logger

	mu            sync.RWMutex
	connected     bool
	subscriptions map[string]Handler
	published     uint64
	errors        uint64
}

// NewClient creates an unconnected Client. A random suffix keeps client ids unique across restarts.
func NewClient(opts Options, log *logger.Logger) *Client {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	opts.ClientID = fmt.Sprintf("%s-%s", opts.ClientID, uuid.NewString()[:8])

	return &Client{
		opts:          opts,
		logger:        log,
		subscriptions: make(map[string]Handler),
	}
}

// Connect establishes the broker connection, waiting up to timeout for the first attempt.
func (c *Client) Connect(timeout time.Duration) error {
	po := paho.NewClientOptions()
	po.AddBroker(c.opts.Broker)
	po.SetClientID(c.opts.ClientID)
	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	po.SetConnectRetryInterval(2 * time.Second)
	po.SetMaxReconnectInterval(30 * time.Second)

	po.OnConnect = func(pc paho.Client) {
		c.mu.Lock()
		c.connected = true
		subs := make(map[string]Handler, len(c.subscriptions))
		for topic, h := range c.subscriptions {
			subs[topic] = h
		}
		c.mu.Unlock()

		c.logger.Info("MQTT connected to %s as %s", c.opts.Broker, c.opts.ClientID)
		for topic, h := range subs {
			if err := c.subscribe(pc, topic, h); err != nil {
				c.logger.Error("MQTT resubscribe to %s failed: %v", topic, err)
			}
		}
	}
	po.OnConnectionLost = func(_ paho.Client, err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.logger.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	c.client = paho.NewClient(po)

	c.logger.Info("Connecting to MQTT broker %s", c.opts.Broker)
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Publish sends payload with QoS 1 and waits for local acceptance within the publish timeout.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		c.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		c.countError()
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		c.countError()
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	c.mu.Lock()
	c.published++
	c.mu.Unlock()
	return nil
}

// Subscribe registers h for topic. The subscription is restored after every reconnect.
func (c *Client) Subscribe(topic string, h Handler) error {
	c.mu.Lock()
	c.subscriptions[topic] = h
	c.mu.Unlock()

	if !c.IsConnected() {
		// OnConnect will subscribe once the connection comes up.
		return nil
	}
	return c.subscribe(c.client, topic, h)
}

func (c *Client) subscribe(pc paho.Client, topic string, h Handler) error {
	token := pc.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscription to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription to %s failed: %w", topic, err)
	}
	c.logger.Info("MQTT subscribed to %s", topic)
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Stats returns publish counters.
func (c *Client) Stats() (published, errors uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published, c.errors
}

// Disconnect closes the connection with a short grace period.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info("MQTT disconnected")
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) countError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}
