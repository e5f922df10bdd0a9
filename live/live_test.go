package live

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/gardentest"
)

type publication struct {
	topic string
	event interface{}
}

type fakeBus struct {
	published []publication
	err       error
}

func (b *fakeBus) PublishToTopic(topic string, event interface{}) error {
	b.published = append(b.published, publication{topic, event})
	return b.err
}

func TestNsqSink(t *testing.T) {
	bus := &fakeBus{}
	sink := NewNsqSink(bus, "garden.live")

	require.NoError(t, sink.EmitToRoom(context.Background(), "garden_1", "sensor_data", map[string]float64{"temperature": 21}))

	require.Len(t, bus.published, 1)
	assert.Equal(t, "garden.live", bus.published[0].topic)

	envelope := bus.published[0].event.(Envelope)
	assert.Equal(t, "garden_1", envelope.Room)
	assert.Equal(t, "sensor_data", envelope.Event)
	assert.False(t, envelope.Timestamp.IsZero())

	// Consumers of the event bus see it under the envelope type
	data, err := app.EncodeEvent(envelope)
	require.NoError(t, err)

	var decoded app.NsqEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "live.Envelope", decoded.Event)
}

func TestRedisSinkChannel(t *testing.T) {
	sink := NewRedisSink(nil, "live")
	assert.Equal(t, "live:garden_7", sink.Channel("garden_7"))
}

func TestMultiKeepsGoing(t *testing.T) {
	failing := &gardentest.Live{Err: errors.New("down")}
	working := &gardentest.Live{}

	err := Multi{failing, working}.EmitToRoom(context.Background(), "garden_1", "device_online", nil)
	assert.EqualError(t, err, "emitting device_online to garden_1: down")

	assert.Len(t, failing.Emissions(), 1)
	assert.Len(t, working.Emissions(), 1)

	assert.NoError(t, Multi{working}.EmitToRoom(context.Background(), "garden_1", "device_online", nil))
}
