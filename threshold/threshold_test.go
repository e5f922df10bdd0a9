package threshold

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/gardentest"
)

func bound(v float64) *float64 {
	return &v
}

func sample() garden.TelemetrySample {
	return garden.TelemetrySample{
		GardenId:    7,
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Temperature: 24,
		Humidity:    55,
		Light:       800,
		Soil:        40,
	}
}

func TestEvaluateWithinBounds(t *testing.T) {
	th := garden.Thresholds{
		TemperatureMin: bound(10),
		TemperatureMax: bound(30),
		SoilMin:        bound(20),
	}

	assert.Empty(t, Evaluate(th, sample()))
	assert.Empty(t, Evaluate(garden.Thresholds{}, sample()))
}

func TestEvaluateBoundsAreStrict(t *testing.T) {
	th := garden.Thresholds{TemperatureMax: bound(24), SoilMin: bound(40)}
	assert.Empty(t, Evaluate(th, sample()))
}

func TestEvaluateIndependentChannels(t *testing.T) {
	th := garden.Thresholds{
		TemperatureMax: bound(30),
		SoilMin:        bound(50),
	}

	s := sample()
	s.Temperature = 35

	alerts := Evaluate(th, s)
	require.Len(t, alerts, 2)

	assert.Equal(t, "temperature", alerts[0].Channel)
	assert.Equal(t, BoundMax, alerts[0].Bound)
	assert.Equal(t, garden.SeverityWarning, alerts[0].Severity)

	assert.Equal(t, "soil", alerts[1].Channel)
	assert.Equal(t, BoundMin, alerts[1].Bound)
	assert.Equal(t, garden.SeverityWarning, alerts[1].Severity)
}

func TestEvaluateLightIsInfo(t *testing.T) {
	th := garden.Thresholds{LightMin: bound(1000), HumidityMax: bound(50)}

	alerts := Evaluate(th, sample())
	require.Len(t, alerts, 2)

	assert.Equal(t, "humidity", alerts[0].Channel)
	assert.Equal(t, garden.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "light", alerts[1].Channel)
	assert.Equal(t, garden.SeverityInfo, alerts[1].Severity)
	assert.Equal(t, "Light too low", alerts[1].Title)
}

func TestCheckPersistsAndBatches(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := gardentest.NewStore()
	live := &gardentest.Live{}

	g := &garden.Garden{
		Id:     7,
		UserId: 3,
		Thresholds: garden.Thresholds{
			TemperatureMax: bound(30),
			SoilMin:        bound(50),
		},
	}

	s := sample()
	s.Temperature = 35

	alerts := NewEvaluator(store, log).Check(context.Background(), g, s, live)
	assert.Len(t, alerts, 2)

	require.Len(t, store.Notifications, 2)
	for _, n := range store.Notifications {
		assert.Equal(t, uint64(7), n.GardenId)
		require.NotNil(t, n.UserId)
		assert.Equal(t, uint64(3), *n.UserId)
		assert.Equal(t, garden.NotificationThreshold, n.Kind)
	}

	emitted := live.Events(EventAlerts)
	require.Len(t, emitted, 1)
	assert.Equal(t, "garden_7", emitted[0].Room)
	assert.Len(t, emitted[0].Payload.(AlertBatch).Alerts, 2)
}

func TestCheckWithoutAlertsEmitsNothing(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := gardentest.NewStore()
	live := &gardentest.Live{}

	g := &garden.Garden{Id: 7, Thresholds: garden.Thresholds{TemperatureMax: bound(30)}}

	assert.Nil(t, NewEvaluator(store, log).Check(context.Background(), g, sample(), live))
	assert.Empty(t, store.Notifications)
	assert.Empty(t, live.Emissions())
}
