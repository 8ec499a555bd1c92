package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/diag-logger/internal/logic"
)

// BufferSize is how many messages are held while the broker is unreachable.
const BufferSize = 100

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("publish timeout")

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client client
	topic  string
	now    func() time.Time

	mu       sync.Mutex
	buf      *outbox
	connects int
}

// NewRealPublisher creates a publisher for the given broker. It does not wait
// for the first connection; paho keeps retrying in the background.
func NewRealPublisher(broker string) *RealPublisher {
	p := newPublisher(nil, time.Now)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("diag-logger").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, willPayload(time.Now()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	p.client = c
	c.Connect()
	return p
}

func newPublisher(c client, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client: c,
		topic:  Topic,
		now:    now,
		buf:    newOutbox(BufferSize),
	}
}

// Publish sends a logger event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(bufferedMsg{topic: p.topic, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	msg := bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	if err := p.send(msg); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// send publishes msg now if connected, otherwise buffers it. A buffered
// message is not an error.
func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		if p.buf.add(msg) && p.buf.dropped == 1 {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", BufferSize)
		}
		p.mu.Unlock()
		return nil
	}
	return p.deliver(msg)
}

func (p *RealPublisher) deliver(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}

// onConnect replays buffered messages, oldest first. Every connection after
// the first is announced with a RECONNECTED system event.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	pending, dropped := p.buf.take()
	p.connects++
	reconnect := p.connects > 1
	p.mu.Unlock()

	switch {
	case dropped > 0:
		log.Printf("mqtt: connected, replaying %d buffered messages (%d dropped while offline)", len(pending), dropped)
	case len(pending) > 0:
		log.Printf("mqtt: connected, replaying %d buffered messages", len(pending))
	default:
		log.Printf("mqtt: connected")
	}
	for i, msg := range pending {
		if err := p.deliver(msg); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
			p.mu.Lock()
			p.buf.requeue(pending[i:])
			p.mu.Unlock()
			return
		}
	}

	if !reconnect {
		return
	}
	if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
		log.Printf("mqtt: reconnect announce failed: %v", err)
	}
}

// Buffered returns the number of messages awaiting replay.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
