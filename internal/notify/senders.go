package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogSender writes deliveries to the log. Used when no broker is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, d Delivery) error {
	log.Info().Str("prayer", string(d.Job.PrayerID)).Str("kind", string(d.Job.Kind)).
		Str("channel", d.Channel.ID).Str("title", d.Job.Title).Msg(d.Job.Body)
	return nil
}

// MQTTSender publishes deliveries as JSON to <prefix>/<channel id>.
type MQTTSender struct {
	client mqtt.Client
	prefix string
}

// NewMQTTSender connects to brokerURL.
func NewMQTTSender(brokerURL, prefix string) (*MQTTSender, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("prayer-times-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", brokerURL).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	if prefix == "" {
		prefix = "prayer-times/notifications"
	}
	return &MQTTSender{client: client, prefix: strings.TrimRight(prefix, "/")}, nil
}

func (s *MQTTSender) Send(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}

	var qos byte
	if d.Channel.Importance >= ImportanceHigh {
		qos = 1
	}

	topic := fmt.Sprintf("%s/%s", s.prefix, d.Channel.ID)
	token := s.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSender) Close() {
	s.client.Disconnect(250)
}
