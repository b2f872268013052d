package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeBus is an in-memory PubSub that delivers synchronously.
type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string][]func(string, []byte)
	published []published
	err       error
}

type published struct {
	topic   string
	payload []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: map[string][]func(string, []byte){}}
}

func (b *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, published{topic, payload})
	err := b.err
	hs := append([]func(string, []byte){}, b.handlers[topic]...)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	for _, h := range hs {
		h(topic, payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(topic string, handler func(string, []byte)) error {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) deliver(topic string, payload []byte) {
	b.mu.Lock()
	hs := append([]func(string, []byte){}, b.handlers[topic]...)
	b.mu.Unlock()
	for _, h := range hs {
		h(topic, payload)
	}
}

func (b *fakeBus) sent() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.published...)
}

// fakeToken completes immediately unless pending is set.
type fakeToken struct {
	err     error
	pending bool
	done    chan struct{}
}

func newToken(err error, pending bool) *fakeToken {
	t := &fakeToken{err: err, pending: pending, done: make(chan struct{})}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                       { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool { return !t.pending }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakePaho implements paho.Client.
type fakePaho struct {
	open       bool
	pubToken   *fakeToken
	subToken   *fakeToken
	connToken  *fakeToken
	lastQoS    byte
	lastTopic  string
	handlers   map[string]paho.MessageHandler
	disconnect bool
}

func (f *fakePaho) IsConnected() bool      { return f.open }
func (f *fakePaho) IsConnectionOpen() bool { return f.open }
func (f *fakePaho) Connect() paho.Token    { return f.connToken }
func (f *fakePaho) Disconnect(quiesce uint) {
	f.disconnect = true
}
func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.lastTopic, f.lastQoS = topic, qos
	return f.pubToken
}
func (f *fakePaho) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	if f.handlers == nil {
		f.handlers = map[string]paho.MessageHandler{}
	}
	f.handlers[topic] = callback
	return f.subToken
}
func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	return newToken(nil, false)
}
func (f *fakePaho) Unsubscribe(topics ...string) paho.Token                  { return newToken(nil, false) }
func (f *fakePaho) AddRoute(topic string, callback paho.MessageHandler)      {}
func (f *fakePaho) OptionsReader() paho.ClientOptionsReader                  { return paho.ClientOptionsReader{} }
