// Package engine turns broker traffic into presence, records and live
// updates, and sends commands back to the devices.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/presence"
)

type Config struct {
	Namespace string
	Qos       byte
	Presence  presence.Config
	Channels  LiveChannels
}

func ConfigFrom(c *app.Config) Config {
	return Config{
		Namespace: c.Mqtt.Namespace,
		Qos:       c.Mqtt.Qos,
		Presence:  presence.ConfigFrom(c.Presence),
		Channels: LiveChannels{
			Primary: c.Live.PrimaryChannel,
			Legacy:  c.Live.LegacyChannel,
		},
	}
}

// Stores are the persistence collaborators of the engine. garden.Store
// implements all of them.
type Stores struct {
	Directory     garden.Directory
	Presence      garden.PresenceStore
	Gardens       garden.GardenStore
	Records       garden.RecordStore
	Notifications garden.NotificationSink
}

func StoresFrom(s *garden.Store) Stores {
	return Stores{
		Directory:     s,
		Presence:      s,
		Gardens:       s,
		Records:       s,
		Notifications: s,
	}
}

type Service struct {
	config Config
	log    logrus.FieldLogger
	stores Stores
	live   *liveSwitch

	Router     *Router
	Tracker    *presence.Tracker
	Handlers   *Handlers
	Dispatcher *Dispatcher

	mu          sync.Mutex
	broker      Broker
	initialized bool
}

func NewService(stores Stores, log logrus.FieldLogger, config Config) *Service {
	if config.Namespace == "" {
		config.Namespace = "garden"
	}
	if config.Qos == 0 {
		config.Qos = 1
	}
	if config.Channels.Primary == "" {
		config.Channels.Primary = "sensor_data"
	}
	if config.Presence.Clock == nil {
		config.Presence.Clock = presence.RealClock
	}

	now := config.Presence.Clock.Now
	live := &liveSwitch{}

	s := &Service{
		config: config,
		log:    log,
		stores: stores,
		live:   live,
	}

	s.Router = NewRouter(config.Namespace, stores.Directory, log)
	s.Tracker = presence.NewTracker(stores.Presence, stores.Records, log, config.Presence)
	s.Tracker.SetLiveSink(live)
	s.Handlers = NewHandlers(stores.Records, stores.Gardens, stores.Notifications, live, config.Channels, now, log)
	s.Dispatcher = NewDispatcher(s.Router, stores.Directory, stores.Gardens, stores.Records, NewLiveStatePublisher(live, now, log), config.Qos, now, log)

	s.Tracker.OnOnline(s.controllerOnline)

	return s
}

func (s *Service) controllerOnline(ctx context.Context, e garden.Endpoint) {
	if e.Kind != garden.Controller {
		return
	}

	if err := s.Dispatcher.SyncTime(ctx, e.Serial); err != nil {
		s.log.WithField("serial", e.Serial).WithField("error", err).Warn("Error syncing device time")
	}
}

// Initialize subscribes to every device topic and starts the sweep, which
// runs until ctx is done.
func (s *Service) Initialize(ctx context.Context, broker Broker, sink garden.LiveUpdateSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return errors.New("engine already initialized")
	}

	s.live.set(sink)
	s.broker = broker
	s.Dispatcher.SetBroker(broker)

	if err := s.subscribe(broker); err != nil {
		return err
	}

	s.initialized = true

	go s.Tracker.Run(ctx)

	return nil
}

func (s *Service) subscribe(broker Broker) error {
	for _, kind := range MessageKinds {
		filter := s.Router.Filter(kind)

		token := broker.Subscribe(filter, s.config.Qos, s.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribing %s: %w", filter, err)
		}

		s.log.WithField("topic", filter).Debug("Subscribed")
	}

	return nil
}

// HandleConnect restores the subscriptions after the broker connection came
// back. Devices come online again one by one as they publish.
func (s *Service) HandleConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return
	}

	s.log.Info("Broker connected, restoring subscriptions")
	if err := s.subscribe(s.broker); err != nil {
		s.log.WithField("error", err).Error("Error restoring subscriptions")
	}
}

// HandleConnectionLost moves every online device offline, their heartbeats
// cannot reach us anymore.
func (s *Service) HandleConnectionLost(err error) {
	s.log.WithField("error", err).Warn("Broker connection lost")
	s.Tracker.DisconnectAll(context.Background(), presence.ReasonConnectionLost)
}

func (s *Service) handleMessage(client mqtt.Client, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("topic", msg.Topic()).WithField("panic", r).Error("Recovered while handling message")
		}
	}()

	ctx := context.Background()

	route, ok := s.Router.Route(ctx, msg.Topic())
	if !ok {
		return
	}

	s.Tracker.Refresh(ctx, route.Endpoint)
	s.Handlers.Handle(ctx, route, msg.Payload())
}

func (s *Service) Dispatch(ctx context.Context, serial string, channel string, action bool, actor *garden.Actor) (*garden.CommandRecord, error) {
	return s.Dispatcher.Dispatch(ctx, serial, channel, action, actor)
}

// DispatchToGarden sends the command to the controller of gardenId.
func (s *Service) DispatchToGarden(ctx context.Context, gardenId uint64, channel string, action bool, actor *garden.Actor) (*garden.CommandRecord, error) {
	e, err := s.stores.Directory.EndpointForGarden(ctx, gardenId, garden.Controller)
	if errors.Is(err, garden.ErrNotFound) {
		return nil, fmt.Errorf("%w: garden %d has no controller", ErrUnknownDevice, gardenId)
	}
	if err != nil {
		return nil, err
	}

	return s.Dispatch(ctx, e.Serial, channel, action, actor)
}

func (s *Service) TakePhoto(ctx context.Context, gardenId uint64, actor *garden.Actor) (*garden.CommandRecord, error) {
	return s.Dispatcher.TakePhoto(ctx, gardenId, actor)
}

func (s *Service) SetStream(ctx context.Context, gardenId uint64, enable bool, actor *garden.Actor) (*garden.CommandRecord, error) {
	return s.Dispatcher.SetStream(ctx, gardenId, enable, actor)
}

func (s *Service) IsOnline(serial string) bool {
	return s.Tracker.IsOnline(serial)
}

type PresenceSnapshot struct {
	Serial     string     `json:"serial"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

// Presence answers from memory and falls back to storage for devices this
// process has not heard from.
func (s *Service) Presence(ctx context.Context, serial string) (*PresenceSnapshot, error) {
	e, ok := s.Tracker.Snapshot(serial)
	if !ok {
		stored, err := s.stores.Directory.Resolve(ctx, serial)
		if err != nil {
			return nil, err
		}
		e = *stored
	}

	return &PresenceSnapshot{
		Serial:     e.Serial,
		Online:     e.Online,
		LastSeenAt: e.LastSeenAt,
	}, nil
}

// Close rejects further commands and waits for outstanding publishes.
func (s *Service) Close() {
	s.Dispatcher.Close()
}
