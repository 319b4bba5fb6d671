package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"sorter/internal/logger"
	"sorter/internal/metrics"
)

// StatusConsumer installs status payloads into a StateCache from a single goroutine.
// Producers never block: payloads beyond the queue capacity are dropped.
type StatusConsumer struct {
	cache  *StateCache
	queue  chan []byte
	logger *logger.Logger
	now    func() time.Time
}

// NewStatusConsumer creates a consumer with a queue of the given capacity.
func NewStatusConsumer(cache *StateCache, capacity int, log *logger.Logger) *StatusConsumer {
	if capacity < 1 {
		capacity = 1
	}
	return &StatusConsumer{
		cache:  cache,
		queue:  make(chan []byte, capacity),
		logger: log,
		now:    time.Now,
	}
}

// Submit enqueues a raw payload. It is safe to call from MQTT callbacks.
func (c *StatusConsumer) Submit(payload []byte) bool {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case c.queue <- buf:
		return true
	default:
		metrics.StatusUpdates.WithLabelValues("dropped").Inc()
		c.logger.Warning("Status queue full, dropping message")
		return false
	}
}

// HandleMessage adapts Submit to the MQTT handler signature.
func (c *StatusConsumer) HandleMessage(_ string, payload []byte) {
	c.Submit(payload)
}

// Run installs queued payloads until ctx is done.
func (c *StatusConsumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.queue:
			c.install(payload)
		}
	}
}

func (c *StatusConsumer) install(payload []byte) {
	trimmed := bytes.TrimSpace(payload)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		metrics.StatusUpdates.WithLabelValues(metrics.ResultError).Inc()
		c.logger.Warning("Ignoring malformed status message: %v", err)
		return
	}

	c.cache.Update(Snapshot{Payload: json.RawMessage(trimmed), ReceivedAt: c.now()})
	metrics.StatusUpdates.WithLabelValues(metrics.ResultOK).Inc()
}

// StatusRequester asks the controller to report its status. The answer arrives
// asynchronously through the StatusConsumer.
type StatusRequester interface {
	RequestStatus(ctx context.Context) error
}

// MQTTStatusRequester publishes a request message on a topic the controller listens to.
type MQTTStatusRequester struct {
	publisher Publisher
	topic     string
	logger    *logger.Logger
	inFlight  atomic.Bool
}

func NewMQTTStatusRequester(publisher Publisher, topic string, log *logger.Logger) *MQTTStatusRequester {
	return &MQTTStatusRequester{publisher: publisher, topic: topic, logger: log}
}

// RequestStatus returns immediately; the publish waits for the broker on its own
// goroutine. At most one request is outstanding, later calls while it waits are no-ops.
func (r *MQTTStatusRequester) RequestStatus(_ context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		defer r.inFlight.Store(false)
		if err := r.publisher.Publish(r.topic, []byte("1")); err != nil {
			r.logger.Warning("Status request failed: %v", err)
		}
	}()
	return nil
}

// HTTPStatusRequester polls GET {baseURL}/status in the background and feeds the
// response body to the consumer.
type HTTPStatusRequester struct {
	baseURL  string
	client   *http.Client
	consumer *StatusConsumer
	logger   *logger.Logger
}

func NewHTTPStatusRequester(baseURL string, timeout time.Duration, consumer *StatusConsumer, log *logger.Logger) *HTTPStatusRequester {
	return &HTTPStatusRequester{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		consumer: consumer,
		logger:   log,
	}
}

// RequestStatus returns immediately; the request runs on its own goroutine.
func (r *HTTPStatusRequester) RequestStatus(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := r.fetch(ctx); err != nil {
			r.logger.Warning("Status request failed: %v", err)
		}
	}()
	return nil
}

func (r *HTTPStatusRequester) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/status", nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("controller answered %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	r.consumer.Submit(body)
	return nil
}
