// Package alert fans emergency activations out to an MQTT topic so external
// responders can be notified. The publisher is optional and best-effort:
// broker problems are logged, never fatal, and never block a session.
package alert

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	defaultTopic   = "safehaven/alerts"
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// waitToken turns paho's token protocol into a single error: a nil result
// means the operation completed cleanly within the deadline.
func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}

// Alert is the published payload.
type Alert struct {
	SessionID string    `json:"session_id"`
	Surface   string    `json:"surface"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher ships alerts to an MQTT broker at QoS 1.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger zerolog.Logger
}

// Connect dials the broker. An empty brokerURL disables alerting and
// returns a nil publisher, which is safe to call Publish on.
func Connect(brokerURL, topic, username, password string, log zerolog.Logger) (*Publisher, error) {
	if brokerURL == "" {
		return nil, nil
	}
	if topic == "" {
		topic = defaultTopic
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("safehaven-alerts").
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	client := mqtt.NewClient(opts)
	if err := waitToken(client.Connect(), connectTimeout); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, err)
	}

	p := &Publisher{
		client: client,
		topic:  topic,
		logger: log.With().Str("component", "alert").Logger(),
	}
	p.logger.Info().Str("broker", brokerURL).Str("topic", topic).Msg("alert publisher connected")
	return p, nil
}

// Publish ships one alert. Failures are logged and swallowed; alerting must
// never take a session down.
func (p *Publisher) Publish(a Alert) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err != nil {
		p.logger.Error().Err(err).Msg("encoding alert")
		return
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn().Str("topic", p.topic).Msg("alert publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn().Err(err).Msg("alert publish failed")
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(1000)
}
