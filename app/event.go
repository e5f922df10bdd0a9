package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/nsqio/go-nsq"
)

var (
	ErrNoProducer = errors.New("nsq producer not configured")
)

type EventHandlerFunc func(event interface{}) error

type EventHandler struct {
	f EventHandlerFunc
	t reflect.Type
}

type EventBusConfig struct {
	NumHandlers int     `yaml:"NumHandlers"`
	ListenName  *string `yaml:"ListenName"`
}

type EventBus struct {
	app      *App
	handlers map[string][]EventHandler

	config *EventBusConfig
}

func NewEventBus(app *App) *EventBus {
	return &EventBus{
		app:      app,
		handlers: make(map[string][]EventHandler),
		config:   app.Config.EventBus,
	}
}

type NsqEvent struct {
	Event   string          `json:"e"`
	Message json.RawMessage `json:"msg"`
}

func (bus *EventBus) SetListenName(name string) {
	bus.config.ListenName = &name
}

func (bus *EventBus) HandleMessage(m *nsq.Message) error {
	var e NsqEvent

	if err := json.Unmarshal(m.Body, &e); err != nil {
		//Requeueing will not fix a broken message
		bus.app.Logger.WithField("error", err).Warn("Dropping undecodable event")
		return nil
	}

	handlers, ok := bus.handlers[e.Event]
	if !ok {
		return nil
	}

	//Type is the same for all
	msg := reflect.New(handlers[0].t).Interface()

	if err := json.Unmarshal(e.Message, msg); err != nil {
		bus.app.Logger.WithField("event", e.Event).WithField("error", err).Warn("Dropping undecodable event")
		return nil
	}

	event := reflect.ValueOf(msg).Elem().Interface()

	for _, h := range handlers {
		if err := h.f(event); err != nil {
			bus.app.Logger.WithField("event", string(e.Message)).WithField("error", err).Error("Error handling event")
			return err
		}
	}

	return nil
}

// Listen consumes the configured topic until ctx is done.
func (bus *EventBus) Listen(ctx context.Context) error {
	if bus.app.Config.NsqTopic == nil || bus.app.Config.NsqLookupd == nil {
		return fmt.Errorf("missing NsqTopic or NsqLookupd for eventbus")
	}
	for k, handlers := range bus.handlers {
		bus.app.Logger.Debugf("%s has %d handlers registered", k, len(handlers))
	}

	application := filepath.Base(os.Args[0])

	if bus.config.ListenName != nil {
		application = *bus.config.ListenName
	}

	consumer, err := nsq.NewConsumer(*bus.app.Config.NsqTopic, application, nsq.NewConfig())
	if err != nil {
		return err
	}

	consumer.AddConcurrentHandlers(bus, bus.config.NumHandlers)

	if err := consumer.ConnectToNSQLookupd(*bus.app.Config.NsqLookupd); err != nil {
		return err
	}

	<-ctx.Done()

	consumer.Stop()
	<-consumer.StopChan

	return nil
}

func (bus *EventBus) Handle(event interface{}, handler EventHandlerFunc) {
	event_id := getEventId(event)
	bus.app.Logger.Debugf("Registering event: %s", event_id)
	h := EventHandler{handler, reflect.TypeOf(event)}
	bus.handlers[event_id] = append(bus.handlers[event_id], h)
}

func (bus *EventBus) Publish(event interface{}) error {
	if bus.app.Config.NsqTopic == nil {
		return fmt.Errorf("missing NsqTopic for eventbus")
	}
	return bus.PublishToTopic(*bus.app.Config.NsqTopic, event)
}

func (bus *EventBus) PublishToTopic(topic string, event interface{}) error {
	if bus.app.NsqProducer == nil {
		return ErrNoProducer
	}

	msg, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	return bus.app.NsqProducer.Publish(topic, msg)
}

// EncodeEvent wraps event in the envelope HandleMessage expects.
func EncodeEvent(event interface{}) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return json.Marshal(NsqEvent{
		Event:   getEventId(event),
		Message: json.RawMessage(data),
	})
}
