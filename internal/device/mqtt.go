// v1
// internal/device/mqtt.go
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/maxmcoste/home-controller/internal/config"
)

// MQTTActuator drives room heaters by publishing retained command messages
// to <prefix><room_id>. Retained delivery lets a heater that reconnects pick
// up the last commanded state without waiting for the next transition.
type MQTTActuator struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
	log     *slog.Logger
}

// NewMQTTActuator connects to the broker and returns the actuator. The
// connect attempt itself is bounded by timeout.
func NewMQTTActuator(cfg config.MQTTConfig, timeout time.Duration, log *slog.Logger) (*MQTTActuator, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: mqtt connect to %s timed out", ErrActuator, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: mqtt connect to %s: %w", ErrActuator, cfg.Broker, err)
	}

	return &MQTTActuator{
		client:  client,
		prefix:  cfg.CommandTopicPrefix,
		timeout: timeout,
		log:     log.With(slog.String("component", "device_mqtt")),
	}, nil
}

type heaterCommand struct {
	RoomID   string `json:"room_id"`
	Status   bool   `json:"status"`
	IssuedAt int64  `json:"issued_at"`
}

// SetHeater publishes the command at QoS 1 and waits for the broker ack
// within the configured timeout or the context deadline, whichever is
// shorter.
func (m *MQTTActuator) SetHeater(ctx context.Context, roomID string, on bool) error {
	payload, err := json.Marshal(heaterCommand{RoomID: roomID, Status: on, IssuedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("%w: room %s: %w", ErrActuator, roomID, err)
	}

	wait := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < wait {
			wait = until
		}
	}

	topic := m.prefix + roomID
	token := m.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("%w: room %s: publish to %s timed out", ErrActuator, roomID, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: room %s: %w", ErrActuator, roomID, err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages to flush.
func (m *MQTTActuator) Close() {
	m.client.Disconnect(250)
}
