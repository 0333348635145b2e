package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topics Topics
}

// NewRealPublisher connects to broker. The status topic carries a
// retained "online", replaced by "offline" through the will if the
// connection drops.
func NewRealPublisher(broker, clientID string, topics Topics) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.Status(), "offline", 1, true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p := &RealPublisher{client: client, topics: topics}
	if err := p.publish(topics.Status(), 1, true, []byte("online")); err != nil {
		client.Disconnect(1000)
		return nil, err
	}
	return p, nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishEvent sends a latch event at QoS 1.
func (p *RealPublisher) PublishEvent(e Event) error {
	payload, err := FormatEvent(e)
	if err != nil {
		return fmt.Errorf("format event: %w", err)
	}
	return p.publish(p.topics.Events(), 1, false, payload)
}

// PublishHeartbeat sends a heartbeat at QoS 0.
func (p *RealPublisher) PublishHeartbeat(hb Heartbeat) error {
	payload, err := FormatHeartbeat(hb)
	if err != nil {
		return fmt.Errorf("format heartbeat: %w", err)
	}
	return p.publish(p.topics.Heartbeat(), 0, false, payload)
}

// IsConnected reports whether the client currently has a connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close publishes "offline" and disconnects from the broker.
func (p *RealPublisher) Close() error {
	err := p.publish(p.topics.Status(), 1, true, []byte("offline"))
	p.client.Disconnect(1000) // 1 second timeout
	return err
}
