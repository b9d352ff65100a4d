package telemetry

import (
	"fmt"
	"log"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Mirror republishes every accepted telemetry point to an MQTT broker,
// one retained topic per measurement. Publish failures follow the same
// policy as the HTTP sink: log, drop the point, keep going.
type Mirror struct {
	client mqtt.Client
	prefix string
}

func NewMirror(broker, clientID, prefix string) (*Mirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: %w", broker, token.Error())
	}
	return &Mirror{client: client, prefix: prefix}, nil
}

func (m *Mirror) Publish(measurement string, value float64) {
	topic := m.prefix + "/" + measurement
	token := m.client.Publish(topic, 0, true, strconv.FormatFloat(value, 'g', -1, 64))
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		log.Printf("telemetry: mqtt publish %s: %v", topic, token.Error())
	}
}
