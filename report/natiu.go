//go:build tinygo

package report

import (
	"context"
	"io"

	mqtt "github.com/soypat/natiu-mqtt"
)

// Natiu publishes reports with the allocation-free natiu MQTT client used
// on firmware builds
type Natiu struct {
	client *mqtt.Client
	topic  string
}

func NewNatiu(client *mqtt.Client, topic string) *Natiu {
	return &Natiu{client: client, topic: topic}
}

// DialNatiu runs the MQTT CONNECT exchange over rwc
func DialNatiu(ctx context.Context, rwc io.ReadWriteCloser, clientID string) (*mqtt.Client, error) {
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1500)},
		OnPub: func(_ mqtt.Header, _ mqtt.VariablesPublish, r io.Reader) error {
			return nil
		},
	})
	var varConn mqtt.VariablesConnect
	varConn.SetDefaultMQTT([]byte(clientID))
	if err := client.Connect(ctx, rwc, &varConn); err != nil {
		return nil, err
	}
	return client, nil
}

func (n *Natiu) Report(ctx context.Context, r Report) error {
	payload, err := r.Marshal()
	if err != nil {
		return err
	}
	flags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, true)
	if err != nil {
		return err
	}
	return n.client.PublishPayload(flags, mqtt.VariablesPublish{TopicName: []byte(n.topic)}, payload)
}
