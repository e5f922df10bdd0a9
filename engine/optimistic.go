package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

const (
	EventActuatorState = "actuator_state"
)

// ActuatorState is the requested state of a channel, not a confirmation from
// the device.
type ActuatorState struct {
	GardenId   uint64    `json:"garden_id"`
	Serial     string    `json:"serial"`
	Channel    string    `json:"channel"`
	State      bool      `json:"state"`
	Optimistic bool      `json:"optimistic"`
	Timestamp  time.Time `json:"timestamp"`
}

// OptimisticStatePublisher is told about every command handed to the
// broker. The confirmed state arrives later with the next telemetry sample.
type OptimisticStatePublisher interface {
	Publish(ctx context.Context, e garden.Endpoint, channel string, state bool)
}

type LiveStatePublisher struct {
	live garden.LiveUpdateSink
	now  func() time.Time
	log  logrus.FieldLogger
}

func NewLiveStatePublisher(live garden.LiveUpdateSink, now func() time.Time, log logrus.FieldLogger) *LiveStatePublisher {
	if now == nil {
		now = time.Now
	}
	return &LiveStatePublisher{live: live, now: now, log: log}
}

func (p *LiveStatePublisher) Publish(ctx context.Context, e garden.Endpoint, channel string, state bool) {
	update := ActuatorState{
		GardenId:   e.GardenId,
		Serial:     e.Serial,
		Channel:    channel,
		State:      state,
		Optimistic: true,
		Timestamp:  p.now().UTC(),
	}

	if err := p.live.EmitToRoom(ctx, e.Room(), EventActuatorState, update); err != nil {
		p.log.WithField("garden_id", e.GardenId).WithField("error", err).Warn("Error emitting actuator state")
	}
}

// ConfirmedOnly publishes nothing, clients wait for telemetry instead.
type ConfirmedOnly struct{}

func (ConfirmedOnly) Publish(ctx context.Context, e garden.Endpoint, channel string, state bool) {}
