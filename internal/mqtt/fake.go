package mqtt

import (
	"sync"

	"github.com/sweeney/diag-logger/internal/logic"
)

// FakeMessage is one message accepted by a FakePublisher.
type FakeMessage struct {
	Topic   string
	Payload []byte

	// Exactly one of Event and System is set.
	Event  *logic.Event
	System *SystemEvent
}

// FakePublisher records what would have gone to the broker, in publish
// order. It is safe for concurrent use; read it through the accessor
// methods while a Forwarder is running.
type FakePublisher struct {
	mu       sync.Mutex
	messages []FakeMessage

	// PublishError, if set, is returned by Publish and PublishSystem and
	// nothing is recorded.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records a logger event under Topic.
func (f *FakePublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	return f.record(FakeMessage{Topic: Topic, Payload: payload, Event: &event})
}

// PublishSystem records a lifecycle event under TopicSystem.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	return f.record(FakeMessage{Topic: TopicSystem, Payload: payload, System: &event})
}

func (f *FakePublisher) record(m FakeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Messages returns a copy of everything recorded so far.
func (f *FakePublisher) Messages() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeMessage(nil), f.messages...)
}

// Published returns the recorded logger events.
func (f *FakePublisher) Published() []logic.Event {
	var out []logic.Event
	for _, m := range f.Messages() {
		if m.Event != nil {
			out = append(out, *m.Event)
		}
	}
	return out
}

// PublishedSystem returns the recorded lifecycle events.
func (f *FakePublisher) PublishedSystem() []SystemEvent {
	var out []SystemEvent
	for _, m := range f.Messages() {
		if m.System != nil {
			out = append(out, *m.System)
		}
	}
	return out
}

// Reset returns the fake to its initial state.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.PublishError = nil
	f.Closed = false
	f.Connected = false
}
