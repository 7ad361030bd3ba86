package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sensorhub-server/internal/config"
)

// EnvironmentalMessage is the wire payload published by temp/humidity sensors.
// Timestamp is optional; ingestion fills in the current time when absent.
type EnvironmentalMessage struct {
	MAC         string     `json:"mac"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// BatteryMessage is the wire payload published by battery monitors.
type BatteryMessage struct {
	MAC           string     `json:"mac"`
	Voltage       *float64   `json:"voltage,omitempty"`
	Percentage    *float64   `json:"percentage,omitempty"`
	DischargeRate *float64   `json:"dischargerate,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

type Subscriber struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// EnvironmentalHandler is called for each valid temp/humidity message.
	EnvironmentalHandler func(msg EnvironmentalMessage) error
	// BatteryHandler is called for each valid battery message.
	BatteryHandler func(msg BatteryMessage) error
}

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetEnvironmentalHandler(handler func(msg EnvironmentalMessage) error)
	SetBatteryHandler(handler func(msg BatteryMessage) error)
}

func (s *Subscriber) SetEnvironmentalHandler(handler func(msg EnvironmentalMessage) error) {
	s.EnvironmentalHandler = handler
}

func (s *Subscriber) SetBatteryHandler(handler func(msg BatteryMessage) error) {
	s.BatteryHandler = handler
}

func NewSubscriber(cfg config.Config, logger *slog.Logger) (*Subscriber, error) {
	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Callbacks keep internal state accurate
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s, nil
}

// Connect establishes connection to the MQTT broker and subscribes to the configured topic.
func (s *Subscriber) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	// Fast path.
	if s.IsConnected() {
		return nil
	}

	// Start connect attempt.
	token := s.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			break
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}

	// Subscribe to the topic
	if err := s.subscribe(); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe: %w", err)
	}

	return nil
}

func (s *Subscriber) subscribe() error {
	if !s.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := s.cfg.MQTTTopic
	qos := byte(1) // At least once delivery

	messageHandler := func(client mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	}

	token := s.client.Subscribe(topic, qos, messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

// handleMessage dispatches on the topic leaf: sensors/temp_humidity and
// sensors/nano_cell_battery carry different payloads.
func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	switch leaf(topic) {
	case "temp_humidity":
		s.handleEnvironmental(topic, payload)
	case "nano_cell_battery":
		s.handleBattery(topic, payload)
	default:
		s.logger.Warn("message on unknown topic", "topic", topic)
	}
}

func leaf(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (s *Subscriber) handleEnvironmental(topic string, payload []byte) {
	var msg EnvironmentalMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("failed to parse environmental message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := validateEnvironmental(msg); err != nil {
		s.logger.Warn("invalid environmental message",
			"topic", topic,
			"mac", msg.MAC,
			"error", err,
		)
		return
	}

	if s.EnvironmentalHandler != nil {
		if err := s.EnvironmentalHandler(msg); err != nil {
			s.logger.Error("environmental handler failed",
				"topic", topic,
				"mac", msg.MAC,
				"error", err,
			)
		}
	}
}

func (s *Subscriber) handleBattery(topic string, payload []byte) {
	var msg BatteryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("failed to parse battery message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := validateBattery(msg); err != nil {
		s.logger.Warn("invalid battery message",
			"topic", topic,
			"mac", msg.MAC,
			"error", err,
		)
		return
	}

	if s.BatteryHandler != nil {
		if err := s.BatteryHandler(msg); err != nil {
			s.logger.Error("battery handler failed",
				"topic", topic,
				"mac", msg.MAC,
				"error", err,
			)
		}
	}
}

func validateEnvironmental(msg EnvironmentalMessage) error {
	if msg.MAC == "" {
		return fmt.Errorf("mac is required")
	}
	if msg.Temperature == nil || msg.Humidity == nil {
		return fmt.Errorf("temperature and humidity are required")
	}
	if *msg.Humidity < 0 || *msg.Humidity > 100 {
		return fmt.Errorf("humidity out of range: %f (must be 0-100)", *msg.Humidity)
	}
	return nil
}

func validateBattery(msg BatteryMessage) error {
	if msg.MAC == "" {
		return fmt.Errorf("mac is required")
	}
	if msg.Percentage != nil && (*msg.Percentage < 0 || *msg.Percentage > 100) {
		return fmt.Errorf("percentage out of range: %f (must be 0-100)", *msg.Percentage)
	}
	// At least one metric should be present
	if msg.Voltage == nil && msg.Percentage == nil && msg.DischargeRate == nil {
		return fmt.Errorf("at least one battery metric (voltage, percentage, or dischargerate) is required")
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	s.stopOnce.Do(func() { close(s.stopCh) })

	// Unsubscribe before disconnecting
	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTTopic)
		token.WaitTimeout(2 * time.Second)
	}

	// Disconnect without holding s.mu to avoid lock contention/deadlocks.
	if s.client != nil {
		s.client.Disconnect(250)
	}

	// Update our internal state.
	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
