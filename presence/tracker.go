// Package presence derives the online state of every endpoint from the
// messages it publishes.
//
// An endpoint comes online with its first accepted message and goes offline
// when its heartbeat timer expires, when the periodic sweep finds it stale or
// when the broker connection itself is lost. All three paths share one
// transition which is a no-op for an endpoint that is already offline.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
)

const (
	EventOnline  = "device_online"
	EventOffline = "device_offline"

	ReasonMessage        = "message"
	ReasonTimeout        = "heartbeat timeout"
	ReasonSweep          = "sweep"
	ReasonConnectionLost = "connection lost"
)

type Config struct {
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	Clock            Clock
}

func ConfigFrom(c app.PresenceConfig) Config {
	return Config{
		HeartbeatTimeout: c.HeartbeatTimeout,
		SweepInterval:    c.SweepInterval,
	}
}

// Event is the payload of device_online and device_offline.
type Event struct {
	Serial    string            `json:"serial"`
	Kind      garden.DeviceKind `json:"kind"`
	GardenId  uint64            `json:"garden_id"`
	Online    bool              `json:"online"`
	Reason    string            `json:"reason"`
	Timestamp time.Time         `json:"timestamp"`
}

// OnlineFunc is called after an endpoint came online, outside of any lock.
type OnlineFunc func(ctx context.Context, e garden.Endpoint)

type endpointState struct {
	mu       sync.Mutex
	endpoint garden.Endpoint
}

type Tracker struct {
	store   garden.PresenceStore
	records garden.RecordStore
	log     logrus.FieldLogger
	clock   Clock

	timeout       time.Duration
	sweepInterval time.Duration

	timers *timerRegistry

	mu        sync.Mutex
	live      garden.LiveUpdateSink
	onOnline  OnlineFunc
	endpoints map[string]*endpointState
}

func NewTracker(store garden.PresenceStore, records garden.RecordStore, log logrus.FieldLogger, config Config) *Tracker {
	if config.Clock == nil {
		config.Clock = RealClock
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = app.DefaultHeartbeatTimeout
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = app.DefaultSweepInterval
	}

	return &Tracker{
		store:         store,
		records:       records,
		log:           log.WithField("component", "presence"),
		clock:         config.Clock,
		timeout:       config.HeartbeatTimeout,
		sweepInterval: config.SweepInterval,
		timers:        newTimerRegistry(config.Clock),
		endpoints:     make(map[string]*endpointState),
	}
}

func (t *Tracker) SetLiveSink(sink garden.LiveUpdateSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = sink
}

func (t *Tracker) OnOnline(f OnlineFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOnline = f
}

func (t *Tracker) HeartbeatTimeout() time.Duration {
	return t.timeout
}

func (t *Tracker) sink() garden.LiveUpdateSink {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// state returns the tracked state of e, seeding it from e when the serial is
// seen for the first time.
func (t *Tracker) state(e garden.Endpoint) *endpointState {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.endpoints[e.Serial]
	if !ok {
		st = &endpointState{endpoint: e}
		t.endpoints[e.Serial] = st
	}
	return st
}

func (t *Tracker) lookup(serial string) *endpointState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endpoints[serial]
}

func (t *Tracker) all() []*endpointState {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := make([]*endpointState, 0, len(t.endpoints))
	for _, st := range t.endpoints {
		states = append(states, st)
	}
	return states
}

// Refresh records an accepted message from e and restarts its heartbeat
// timer. It returns true when this message brought the endpoint online.
func (t *Tracker) Refresh(ctx context.Context, e garden.Endpoint) bool {
	st := t.state(e)

	st.mu.Lock()
	now := t.clock.Now()
	current := &st.endpoint

	// Adopted as online from storage but silent for longer than the timeout
	if current.Online && t.stale(*current, now) {
		t.offlineLocked(ctx, st, ReasonTimeout)
	}

	t.timers.refresh(e.Serial, t.timeout, t.expire)
	current.LastSeenAt = &now

	if current.Online {
		if err := t.store.TouchLastSeen(ctx, e.Serial, now); err != nil {
			t.log.WithField("serial", e.Serial).WithField("error", err).Error("Error updating last seen")
		}
		st.mu.Unlock()
		return false
	}

	current.Online = true
	snapshot := *current
	if err := t.store.UpdatePresence(ctx, snapshot); err != nil {
		t.log.WithField("serial", e.Serial).WithField("error", err).Error("Error persisting online state")
	}
	t.announce(ctx, snapshot, ReasonMessage, now)
	st.mu.Unlock()

	t.log.WithField("serial", e.Serial).WithField("garden_id", e.GardenId).Info("Device came online")

	t.mu.Lock()
	onOnline := t.onOnline
	t.mu.Unlock()
	if onOnline != nil {
		onOnline(ctx, snapshot)
	}

	return true
}

// Offline moves serial offline. It returns false if the serial is unknown or
// already offline.
func (t *Tracker) Offline(ctx context.Context, serial string, reason string) bool {
	st := t.lookup(serial)
	if st == nil {
		return false
	}

	t.timers.cancel(serial)

	st.mu.Lock()
	defer st.mu.Unlock()

	return t.offlineLocked(ctx, st, reason)
}

func (t *Tracker) offlineLocked(ctx context.Context, st *endpointState, reason string) bool {
	current := &st.endpoint
	if !current.Online {
		return false
	}

	now := t.clock.Now()
	current.Online = false
	current.LastDisconnectedAt = &now
	snapshot := *current

	if err := t.store.UpdatePresence(ctx, snapshot); err != nil {
		t.log.WithField("serial", snapshot.Serial).WithField("error", err).Error("Error persisting offline state")
	}
	t.announce(ctx, snapshot, reason, now)

	t.log.WithFields(logrus.Fields{
		"serial":    snapshot.Serial,
		"garden_id": snapshot.GardenId,
		"reason":    reason,
	}).Info("Device went offline")

	return true
}

// expire is the heartbeat timer callback.
func (t *Tracker) expire(serial string, gen uint64) {
	st := t.lookup(serial)
	if st == nil {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// A refresh between the timer firing and taking the lock replaced it
	if !t.timers.consume(serial, gen) {
		return
	}

	t.offlineLocked(context.Background(), st, ReasonTimeout)
}

func (t *Tracker) announce(ctx context.Context, e garden.Endpoint, reason string, at time.Time) {
	event := EventOffline
	level := garden.SeverityWarning
	message := fmt.Sprintf("%s %s went offline (%s)", e.Kind, e.Serial, reason)
	if e.Online {
		event = EventOnline
		level = garden.SeverityInfo
		message = fmt.Sprintf("%s %s came online", e.Kind, e.Serial)
	}

	if t.records != nil {
		entry := &garden.LogEntry{
			GardenId:  e.GardenId,
			Serial:    e.Serial,
			Source:    garden.SourceSystem,
			Level:     level,
			Message:   message,
			Timestamp: at,
		}
		if err := t.records.SaveLog(ctx, entry); err != nil {
			t.log.WithField("serial", e.Serial).WithField("error", err).Error("Error saving presence log")
		}
	}

	sink := t.sink()
	if sink == nil {
		return
	}

	payload := Event{
		Serial:    e.Serial,
		Kind:      e.Kind,
		GardenId:  e.GardenId,
		Online:    e.Online,
		Reason:    reason,
		Timestamp: at,
	}
	if err := sink.EmitToRoom(ctx, e.Room(), event, payload); err != nil {
		t.log.WithField("serial", e.Serial).WithField("error", err).Warn("Error emitting presence event")
	}
}

// IsOnline reports the in-memory state of serial.
func (t *Tracker) IsOnline(serial string) bool {
	st := t.lookup(serial)
	if st == nil {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.endpoint.Online
}

// Snapshot returns a copy of the tracked endpoint.
func (t *Tracker) Snapshot(serial string) (garden.Endpoint, bool) {
	st := t.lookup(serial)
	if st == nil {
		return garden.Endpoint{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.endpoint, true
}

// candidates merges the endpoints stored as online with the ones online in
// memory. Stored endpoints unknown to this process are adopted with their
// stored state.
func (t *Tracker) candidates(ctx context.Context) []*endpointState {
	stored, err := t.store.ListOnline(ctx)
	if err != nil {
		t.log.WithField("error", err).Error("Error listing online devices")
	}

	for _, e := range stored {
		st := t.state(e)

		st.mu.Lock()
		if !st.endpoint.Online {
			// The offline write was lost, memory wins
			if err := t.store.UpdatePresence(ctx, st.endpoint); err != nil {
				t.log.WithField("serial", e.Serial).WithField("error", err).Error("Error reconciling offline state")
			}
		}
		st.mu.Unlock()
	}

	return t.all()
}

func (t *Tracker) stale(e garden.Endpoint, now time.Time) bool {
	return e.LastSeenAt == nil || now.Sub(*e.LastSeenAt) > t.timeout
}

// Sweep moves every online endpoint whose last message is older than the
// heartbeat timeout offline. It returns the number of transitions.
func (t *Tracker) Sweep(ctx context.Context) int {
	count := 0

	for _, st := range t.candidates(ctx) {
		st.mu.Lock()

		current := st.endpoint
		if current.Online && t.stale(current, t.clock.Now()) {
			t.timers.cancel(current.Serial)
			if t.offlineLocked(ctx, st, ReasonSweep) {
				count++
			}
		}

		st.mu.Unlock()
	}

	if count > 0 {
		t.log.WithField("count", count).Info("Sweep moved stale devices offline")
	}

	return count
}

// DisconnectAll drops every heartbeat timer and moves every online endpoint
// offline without looking at its last message.
func (t *Tracker) DisconnectAll(ctx context.Context, reason string) int {
	cancelled := t.timers.cancelAll()

	count := 0
	for _, st := range t.candidates(ctx) {
		st.mu.Lock()
		if t.offlineLocked(ctx, st, reason) {
			count++
		}
		st.mu.Unlock()
	}

	t.log.WithFields(logrus.Fields{
		"timers":  cancelled,
		"offline": count,
		"reason":  reason,
	}).Warn("All devices moved offline")

	return count
}

// Run sweeps every sweep interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	t.log.WithField("interval", t.sweepInterval).Info("Starting presence sweep")

	for {
		select {
		case <-ctx.Done():
			t.log.Info("Stopping presence sweep")
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}
