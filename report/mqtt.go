package report

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes reports as retained JSON messages on a topic
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTT returns a reporter publishing on topic with QoS 1
func NewMQTT(client mqtt.Client, topic string) *MQTT {
	return &MQTT{client: client, topic: topic, qos: 1}
}

// DialMQTT connects a client to broker, e.g. "tcp://10.0.0.100:1883"
func DialMQTT(broker, clientID, user, passwd string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(user).
		SetPassword(passwd).
		SetConnectTimeout(timeout).
		SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

func (m *MQTT) Report(ctx context.Context, r Report) error {
	payload, err := r.Marshal()
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, m.qos, true, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
