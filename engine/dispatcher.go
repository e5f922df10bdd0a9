package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

const (
	ChannelAuto = "auto"
	ChannelAll  = "all"

	ChannelCamera = "camera"

	ActionTakePhoto = "take_photo"
	ActionStream    = "stream"

	DefaultPublishTimeout = 30 * time.Second
)

type Channel struct {
	Name string
	// Synthetic channels do not map to one relay
	Synthetic bool
}

type Channels []Channel

var AllowedChannels = Channels{
	{"fan", false},
	{"lamp", false},
	{"pump", false},
	{"heater", false},
	{ChannelAuto, true},
	{ChannelAll, true},
}

func (channels Channels) Get(name string) (*Channel, error) {
	for i := range channels {
		channel := &channels[i]
		if strings.EqualFold(channel.Name, name) {
			return channel, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

type commandPayload struct {
	Id      string `json:"id"`
	Channel string `json:"channel"`
	Action  bool   `json:"action"`
}

type cameraPayload struct {
	Action string `json:"action"`
	Enable *bool  `json:"enable,omitempty"`
}

type syncPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func actionString(action bool) string {
	if action {
		return "on"
	}
	return "off"
}

// Dispatcher publishes commands to devices. The audit record is written
// before the broker confirms delivery and is never updated afterwards.
type Dispatcher struct {
	router    *Router
	directory garden.Directory
	gardens   garden.GardenStore
	records   garden.RecordStore
	log       logrus.FieldLogger
	now       func() time.Time
	qos       byte

	PublishTimeout time.Duration

	mu         sync.RWMutex
	broker     Broker
	optimistic OptimisticStatePublisher
	closed     bool

	pending sync.WaitGroup
}

func NewDispatcher(router *Router, directory garden.Directory, gardens garden.GardenStore, records garden.RecordStore, optimistic OptimisticStatePublisher, qos byte, now func() time.Time, log logrus.FieldLogger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if optimistic == nil {
		optimistic = ConfirmedOnly{}
	}

	return &Dispatcher{
		router:         router,
		directory:      directory,
		gardens:        gardens,
		records:        records,
		optimistic:     optimistic,
		qos:            qos,
		now:            now,
		log:            log.WithField("component", "dispatcher"),
		PublishTimeout: DefaultPublishTimeout,
	}
}

func (d *Dispatcher) SetBroker(b Broker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broker = b
}

func (d *Dispatcher) SetStatePublisher(p OptimisticStatePublisher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.optimistic = p
}

func (d *Dispatcher) current() (Broker, OptimisticStatePublisher, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, nil, ErrClosed
	}
	if d.broker == nil {
		return nil, nil, ErrNotInitialized
	}
	return d.broker, d.optimistic, nil
}

func (d *Dispatcher) controller(ctx context.Context, serial string) (*garden.Endpoint, error) {
	e, err := d.directory.Resolve(ctx, serial)
	if errors.Is(err, garden.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, serial)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", serial, err)
	}

	if e.Kind != garden.Controller {
		return nil, fmt.Errorf("%w: %s is a %s", ErrUnknownDevice, serial, e.Kind)
	}

	return e, nil
}

func (d *Dispatcher) audit(ctx context.Context, record *garden.CommandRecord) {
	if err := d.records.SaveCommand(ctx, record); err != nil {
		d.log.WithFields(logrus.Fields{
			"serial":  record.Serial,
			"channel": record.Channel,
			"error":   err,
		}).Error("Error saving command record")
	}
}

func actorId(actor *garden.Actor) *uint64 {
	if actor == nil {
		return nil
	}
	id := actor.UserId
	return &id
}

// Dispatch sends action for channel to the controller serial. A nil actor
// marks a scheduled command, those are suppressed while the garden is not in
// auto mode. Only validation errors are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, serial string, channel string, action bool, actor *garden.Actor) (*garden.CommandRecord, error) {
	ch, err := AllowedChannels.Get(channel)
	if err != nil {
		return nil, err
	}

	e, err := d.controller(ctx, serial)
	if err != nil {
		return nil, err
	}

	broker, optimistic, err := d.current()
	if err != nil {
		return nil, err
	}

	record := &garden.CommandRecord{
		GardenId: e.GardenId,
		Serial:   e.Serial,
		Channel:  ch.Name,
		Action:   actionString(action),
		ActorId:  actorId(actor),
		Outcome:  garden.OutcomeAttempted,
		Created:  d.now().UTC(),
	}

	if actor == nil {
		g, err := d.gardens.Garden(ctx, e.GardenId)
		if err != nil {
			return nil, fmt.Errorf("loading garden %d: %w", e.GardenId, err)
		}

		if !g.AutoMode {
			record.Outcome = garden.OutcomeSuppressed
			d.audit(ctx, record)
			d.log.WithFields(logrus.Fields{
				"serial":    e.Serial,
				"garden_id": e.GardenId,
				"channel":   ch.Name,
			}).Info("Scheduled command suppressed, auto mode is disabled")
			return record, nil
		}
	}

	d.audit(ctx, record)

	d.publish(broker, d.router.Topic(e.Serial, "command"), commandPayload{
		Id:      uuid.NewString(),
		Channel: ch.Name,
		Action:  action,
	}, logrus.Fields{"serial": e.Serial, "channel": ch.Name})

	optimistic.Publish(ctx, *e, ch.Name, action)

	if ch.Name == ChannelAuto {
		if err := d.gardens.SetAutoMode(ctx, e.GardenId, action); err != nil {
			d.log.WithField("garden_id", e.GardenId).WithField("error", err).Error("Error storing auto mode")
		}
	}

	return record, nil
}

func (d *Dispatcher) camera(ctx context.Context, gardenId uint64) (*garden.Endpoint, error) {
	e, err := d.directory.EndpointForGarden(ctx, gardenId, garden.Camera)
	if errors.Is(err, garden.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNoCamera, gardenId)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving camera of %d: %w", gardenId, err)
	}
	return e, nil
}

func (d *Dispatcher) cameraCommand(ctx context.Context, gardenId uint64, action string, payload cameraPayload, actor *garden.Actor) (*garden.CommandRecord, error) {
	e, err := d.camera(ctx, gardenId)
	if err != nil {
		return nil, err
	}

	broker, _, err := d.current()
	if err != nil {
		return nil, err
	}

	record := &garden.CommandRecord{
		GardenId: e.GardenId,
		Serial:   e.Serial,
		Channel:  ChannelCamera,
		Action:   action,
		ActorId:  actorId(actor),
		Outcome:  garden.OutcomeAttempted,
		Created:  d.now().UTC(),
	}
	d.audit(ctx, record)

	d.publish(broker, d.router.Topic(e.Serial, ChannelCamera), payload, logrus.Fields{"serial": e.Serial, "channel": ChannelCamera})

	return record, nil
}

func (d *Dispatcher) TakePhoto(ctx context.Context, gardenId uint64, actor *garden.Actor) (*garden.CommandRecord, error) {
	return d.cameraCommand(ctx, gardenId, ActionTakePhoto, cameraPayload{Action: ActionTakePhoto}, actor)
}

func (d *Dispatcher) SetStream(ctx context.Context, gardenId uint64, enable bool, actor *garden.Actor) (*garden.CommandRecord, error) {
	return d.cameraCommand(ctx, gardenId, ActionStream+"_"+actionString(enable), cameraPayload{Action: ActionStream, Enable: &enable}, actor)
}

// SyncTime sends the current time to a controller. It is not audited.
func (d *Dispatcher) SyncTime(ctx context.Context, serial string) error {
	broker, _, err := d.current()
	if err != nil {
		return err
	}

	d.publish(broker, d.router.Topic(serial, "sync"), syncPayload{Timestamp: d.now().Unix()}, logrus.Fields{"serial": serial})

	return nil
}

// publish hands payload to the broker and logs, without retrying, a failed
// delivery once the token completes.
func (d *Dispatcher) publish(broker Broker, topic string, payload interface{}, fields logrus.Fields) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.log.WithFields(fields).WithField("error", err).Error("Error encoding command")
		return
	}

	// Add must not race with Close waiting on pending
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.log.WithFields(fields).WithField("topic", topic).Warn("Dropping command, engine closed")
		return
	}
	d.pending.Add(1)
	d.mu.RUnlock()

	token := broker.Publish(topic, d.qos, false, data)

	go func(token mqtt.Token) {
		defer d.pending.Done()

		if !token.WaitTimeout(d.PublishTimeout) {
			d.log.WithFields(fields).WithField("topic", topic).Error("Timeout publishing command")
			return
		}
		if err := token.Error(); err != nil {
			d.log.WithFields(fields).WithField("topic", topic).WithField("error", err).Error("Error publishing command")
			return
		}
		d.log.WithFields(fields).WithField("topic", topic).Debug("Command delivered to broker")
	}(token)
}

// Close rejects further commands and waits for outstanding publishes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.pending.Wait()
}
