package engine

import (
	"context"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

// Broker is the part of mqtt.Client the engine uses.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// liveSwitch forwards to the sink handed over by Initialize and drops events
// until then.
type liveSwitch struct {
	mu   sync.RWMutex
	sink garden.LiveUpdateSink
}

func (l *liveSwitch) set(sink garden.LiveUpdateSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

func (l *liveSwitch) EmitToRoom(ctx context.Context, room string, event string, payload interface{}) error {
	l.mu.RLock()
	sink := l.sink
	l.mu.RUnlock()

	if sink == nil {
		return nil
	}
	return sink.EmitToRoom(ctx, room, event, payload)
}
