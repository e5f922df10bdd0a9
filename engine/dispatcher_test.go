package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

func TestChannelsGet(t *testing.T) {
	for _, name := range []string{"fan", "LAMP", "Pump", "heater", "auto", "all"} {
		channel, err := AllowedChannels.Get(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, channel.Name)
	}

	_, err := AllowedChannels.Get("sprinkler")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestDispatchUserCommand(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	record, err := f.service.Dispatch(context.Background(), "C1", "PUMP", true, &garden.Actor{UserId: 9})
	require.NoError(t, err)
	f.service.Close()

	assert.Equal(t, garden.OutcomeAttempted, record.Outcome)
	assert.Equal(t, "pump", record.Channel)
	assert.Equal(t, "on", record.Action)
	require.NotNil(t, record.ActorId)
	assert.Equal(t, uint64(9), *record.ActorId)

	require.Len(t, f.store.Commands, 1)

	publications := f.broker.Publications()
	require.Len(t, publications, 1)
	assert.Equal(t, "garden/C1/command", publications[0].Topic)
	assert.Equal(t, byte(1), publications[0].Qos)

	payload := decode(t, publications[0].Payload)
	assert.Equal(t, "pump", payload["channel"])
	assert.Equal(t, true, payload["action"])
	assert.NotEmpty(t, payload["id"])

	states := f.live.Events(EventActuatorState)
	require.Len(t, states, 1)
	assert.Equal(t, "garden_1", states[0].Room)
	state := states[0].Payload.(ActuatorState)
	assert.True(t, state.Optimistic)
	assert.True(t, state.State)
}

func TestDispatchValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Dispatch(context.Background(), "C1", "fan", true, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	f.initialize(t)

	_, err = f.service.Dispatch(context.Background(), "C1", "sprinkler", true, nil)
	assert.ErrorIs(t, err, ErrUnknownChannel)

	_, err = f.service.Dispatch(context.Background(), "NOPE", "fan", true, nil)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	_, err = f.service.Dispatch(context.Background(), "K1", "fan", true, nil)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	assert.Empty(t, f.broker.Publications())
	assert.Empty(t, f.store.Commands)
}

func TestScheduledCommandAutoModeGate(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	record, err := f.service.Dispatch(context.Background(), "C1", "PUMP", true, nil)
	require.NoError(t, err)

	assert.Equal(t, garden.OutcomeSuppressed, record.Outcome)
	assert.Nil(t, record.ActorId)
	assert.Empty(t, f.broker.Publications())
	assert.Empty(t, f.live.Events(EventActuatorState))
	require.Len(t, f.store.Commands, 1)
	assert.Equal(t, garden.OutcomeSuppressed, f.store.Commands[0].Outcome)
	assert.Equal(t, 1, f.entries(logrus.InfoLevel, "Scheduled command suppressed, auto mode is disabled"))

	// Garden 2 runs in auto mode
	record, err = f.service.Dispatch(context.Background(), "C2", "pump", true, nil)
	require.NoError(t, err)
	assert.Equal(t, garden.OutcomeAttempted, record.Outcome)
	assert.Len(t, f.broker.Publications(), 1)

	// User commands are never gated
	_, err = f.service.Dispatch(context.Background(), "C1", "pump", false, &garden.Actor{UserId: 9})
	require.NoError(t, err)
	assert.Len(t, f.broker.Publications(), 2)
}

func TestDispatchAutoChannelStoresMode(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	_, err := f.service.DispatchToGarden(context.Background(), 1, "auto", true, &garden.Actor{UserId: 9})
	require.NoError(t, err)

	g, err := f.store.Garden(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, g.AutoMode)

	// The scheduler now gets through
	record, err := f.service.Dispatch(context.Background(), "C1", "fan", true, nil)
	require.NoError(t, err)
	assert.Equal(t, garden.OutcomeAttempted, record.Outcome)
}

func TestDispatchPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.broker.PublishErr = errors.New("not connected")

	record, err := f.service.Dispatch(context.Background(), "C1", "fan", true, &garden.Actor{UserId: 9})
	require.NoError(t, err)
	f.service.Close()

	assert.Equal(t, garden.OutcomeAttempted, record.Outcome)
	require.Len(t, f.store.Commands, 1)
	assert.Equal(t, garden.OutcomeAttempted, f.store.Commands[0].Outcome)
	assert.Equal(t, 1, f.entries(logrus.ErrorLevel, "Error publishing command"))
	assert.Len(t, f.live.Events(EventActuatorState), 1)
}

func TestDispatchAfterClose(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.service.Close()

	_, err := f.service.Dispatch(context.Background(), "C1", "fan", true, &garden.Actor{UserId: 9})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = f.service.TakePhoto(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, f.service.Dispatcher.SyncTime(context.Background(), "C1"), ErrClosed)

	// Closing twice is harmless
	f.service.Close()

	assert.Empty(t, f.broker.Publications())
	assert.Empty(t, f.store.Commands)
}

func TestDispatchAuditFailure(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.store.CommandErr = errors.New("database gone")

	_, err := f.service.Dispatch(context.Background(), "C1", "fan", true, &garden.Actor{UserId: 9})
	require.NoError(t, err)

	assert.Equal(t, 1, f.entries(logrus.ErrorLevel, "Error saving command record"))
	assert.Len(t, f.broker.Publications(), 1)
}

func TestDispatchConfirmedOnly(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.service.Dispatcher.SetStatePublisher(ConfirmedOnly{})

	_, err := f.service.Dispatch(context.Background(), "C1", "fan", true, &garden.Actor{UserId: 9})
	require.NoError(t, err)

	assert.Len(t, f.broker.Publications(), 1)
	assert.Empty(t, f.live.Events(EventActuatorState))
}

func TestCameraCommands(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	// Garden 1 is not in auto mode, camera commands are not gated
	record, err := f.service.TakePhoto(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "K1", record.Serial)
	assert.Equal(t, ActionTakePhoto, record.Action)

	_, err = f.service.SetStream(context.Background(), 1, true, &garden.Actor{UserId: 9})
	require.NoError(t, err)

	publications := f.broker.Publications()
	require.Len(t, publications, 2)
	assert.Equal(t, "garden/K1/camera", publications[0].Topic)
	assert.Equal(t, map[string]interface{}{"action": "take_photo"}, decode(t, publications[0].Payload))
	assert.Equal(t, map[string]interface{}{"action": "stream", "enable": true}, decode(t, publications[1].Payload))

	_, err = f.service.TakePhoto(context.Background(), 3, nil)
	assert.ErrorIs(t, err, ErrNoCamera)

	assert.Len(t, f.store.Commands, 2)
}

func TestDispatchToGardenWithoutController(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	_, err := f.service.DispatchToGarden(context.Background(), 42, "fan", true, nil)
	assert.ErrorIs(t, err, ErrUnknownDevice)
}
