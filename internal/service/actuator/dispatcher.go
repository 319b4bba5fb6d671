package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sorter/internal/apperror"
	"sorter/internal/model"
)

// Dispatcher delivers one command to the actuator controller. A nil error means the
// controller (or broker) accepted it. Failures wrap apperror.ErrDispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd model.ActuatorCommand) error
}

// Publisher is the MQTT surface needed by the dispatcher and the status requester.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// HTTPDispatcher calls GET {baseURL}/servo/{id} on the controller.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPDispatcher creates a dispatcher bounded by timeout per call.
func NewHTTPDispatcher(baseURL string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, cmd model.ActuatorCommand) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	query := url.Values{}
	if cmd.Angle != nil {
		query.Set("angle", strconv.Itoa(*cmd.Angle))
	} else {
		action := cmd.Action
		if action == "" {
			action = model.ActionActivate
		}
		query.Set("action", action)
	}
	endpoint := fmt.Sprintf("%s/servo/%d?%s", d.baseURL, cmd.ActuatorID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", apperror.ErrDispatch, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: servo %d: %v", apperror.ErrDispatch, cmd.ActuatorID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: servo %d: controller answered %d", apperror.ErrDispatch, cmd.ActuatorID, resp.StatusCode)
	}
	return nil
}

// MQTTDispatcher publishes {"servo":id,"angle":angle} on {prefix}/{id}.
type MQTTDispatcher struct {
	publisher    Publisher
	prefix       string
	defaultAngle int
}

// NewMQTTDispatcher creates a dispatcher. Activations without an angle use defaultAngle.
func NewMQTTDispatcher(publisher Publisher, prefix string, defaultAngle int) *MQTTDispatcher {
	return &MQTTDispatcher{
		publisher:    publisher,
		prefix:       prefix,
		defaultAngle: defaultAngle,
	}
}

type servoMessage struct {
	Servo int `json:"servo"`
	Angle int `json:"angle"`
}

func (d *MQTTDispatcher) Dispatch(ctx context.Context, cmd model.ActuatorCommand) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrDispatch, err)
	}

	angle := d.defaultAngle
	if cmd.Angle != nil {
		angle = *cmd.Angle
	}

	payload, err := json.Marshal(servoMessage{Servo: cmd.ActuatorID, Angle: angle})
	if err != nil {
		return fmt.Errorf("%w: failed to encode command: %v", apperror.ErrDispatch, err)
	}

	topic := fmt.Sprintf("%s/%d", d.prefix, cmd.ActuatorID)
	if err := d.publisher.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrDispatch, err)
	}
	return nil
}
