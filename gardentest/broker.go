package gardentest

import (
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed mqtt.Token.
type Token struct {
	err  error
	done chan struct{}
}

func NewToken(err error) *Token {
	t := &Token{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *Token) Wait() bool { return true }
func (t *Token) WaitTimeout(d time.Duration) bool { return true }
func (t *Token) Done() <-chan struct{} { return t.done }
func (t *Token) Error() error { return t.err }

type Message struct {
	TopicName string
	Body      []byte
}

func NewMessage(topic string, payload interface{}) *Message {
	switch p := payload.(type) {
	case []byte:
		return &Message{topic, p}
	case string:
		return &Message{topic, []byte(p)}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return &Message{topic, data}
}

func (m *Message) Duplicate() bool { return false }
func (m *Message) Qos() byte { return 1 }
func (m *Message) Retained() bool { return false }
func (m *Message) Topic() string { return m.TopicName }
func (m *Message) MessageID() uint16 { return 1 }
func (m *Message) Payload() []byte { return m.Body }
func (m *Message) Ack() {}

type Publication struct {
	Topic    string
	Qos      byte
	Retained bool
	Payload  []byte
}

// Broker records publishes and subscriptions.
type Broker struct {
	mu            sync.Mutex
	publications  []Publication
	subscriptions map[string]mqtt.MessageHandler

	// PublishErr is returned by every publish token.
	PublishErr error
}

func NewBroker() *Broker {
	return &Broker{subscriptions: make(map[string]mqtt.MessageHandler)}
}

func (b *Broker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}

	b.mu.Lock()
	b.publications = append(b.publications, Publication{topic, qos, retained, data})
	err := b.PublishErr
	b.mu.Unlock()

	return NewToken(err)
}

func (b *Broker) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	b.subscriptions[topic] = callback
	b.mu.Unlock()

	return NewToken(nil)
}

func (b *Broker) Publications() []Publication {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Publication(nil), b.publications...)
}

func (b *Broker) Subscriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var topics []string
	for t := range b.subscriptions {
		topics = append(topics, t)
	}
	return topics
}

// Deliver hands msg to the handler subscribed with the exact filter.
func (b *Broker) Deliver(filter string, msg mqtt.Message) bool {
	b.mu.Lock()
	handler, ok := b.subscriptions[filter]
	b.mu.Unlock()

	if !ok {
		return false
	}
	handler(nil, msg)
	return true
}

func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publications = nil
}
