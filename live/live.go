// Package live carries room broadcasts to the processes serving the
// connected clients.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
)

const (
	SinkNsq   = "nsq"
	SinkRedis = "redis"
)

// Envelope is what every sink puts on the wire.
type Envelope struct {
	Room      string      `json:"room"`
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type TopicPublisher interface {
	PublishToTopic(topic string, event interface{}) error
}

type NsqSink struct {
	bus   TopicPublisher
	topic string
}

func NewNsqSink(bus TopicPublisher, topic string) *NsqSink {
	return &NsqSink{bus: bus, topic: topic}
}

func (s *NsqSink) EmitToRoom(ctx context.Context, room string, event string, payload interface{}) error {
	return s.bus.PublishToTopic(s.topic, Envelope{
		Room:      room,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

type RedisSink struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSink(client redis.UniversalClient, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Channel(room string) string {
	return s.prefix + ":" + room
}

func (s *RedisSink) EmitToRoom(ctx context.Context, room string, event string, payload interface{}) error {
	data, err := json.Marshal(Envelope{
		Room:      room,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return s.client.Publish(ctx, s.Channel(room), data).Err()
}

// Multi emits to every sink and keeps going when one of them fails.
type Multi []garden.LiveUpdateSink

func (m Multi) EmitToRoom(ctx context.Context, room string, event string, payload interface{}) error {
	var failed []string
	for _, sink := range m {
		if err := sink.EmitToRoom(ctx, room, event, payload); err != nil {
			failed = append(failed, err.Error())
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("emitting %s to %s: %s", event, room, strings.Join(failed, "; "))
	}
	return nil
}

// FromConfig builds the sinks named in the config from the app backends.
func FromConfig(a *app.App) (garden.LiveUpdateSink, error) {
	config := a.Config.Live

	var sinks Multi
	for _, name := range config.Sinks {
		switch name {
		case SinkNsq:
			if a.NsqProducer == nil {
				return nil, fmt.Errorf("live sink %s needs Nsqd", name)
			}
			sinks = append(sinks, NewNsqSink(a.Event, config.Topic))
		case SinkRedis:
			if a.Redis == nil {
				return nil, fmt.Errorf("live sink %s needs Redis", name)
			}
			sinks = append(sinks, NewRedisSink(a.Redis, config.RedisPrefix))
		default:
			return nil, fmt.Errorf("unknown live sink: %s", name)
		}
	}

	a.Logger.WithFields(logrus.Fields{
		"sinks": config.Sinks,
	}).Debug("Live update sinks configured")

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}
