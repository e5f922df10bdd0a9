package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/gardentest"
)

func TestRoute(t *testing.T) {
	store := gardentest.NewStore()
	store.AddEndpoint(garden.Endpoint{Serial: "C1", Kind: garden.Controller, GardenId: 1})
	store.AddEndpoint(garden.Endpoint{Serial: "K1", Kind: garden.Camera, GardenId: 1})

	log, _ := test.NewNullLogger()
	router := NewRouter("garden", store, log)

	rejected := []string{
		"",
		"garden",
		"garden/C1",
		"garden/C1/data/extra",
		"/garden/C1/data",
		"other/C1/data",
		"garden//data",
		"garden/C1/command",
		"garden/UNKNOWN/data",
		"garden/K1/data",
		"garden/K1/logs",
	}
	for _, topic := range rejected {
		_, ok := router.Route(context.Background(), topic)
		assert.False(t, ok, topic)
	}

	accepted := map[string]MessageKind{
		"garden/C1/data":   MessageTelemetry,
		"garden/C1/status": MessageStatus,
		"garden/C1/image":  MessageImage,
		"garden/C1/logs":   MessageLog,
		"garden/K1/image":  MessageImage,
		"garden/K1/status": MessageStatus,
	}
	for topic, kind := range accepted {
		route, ok := router.Route(context.Background(), topic)
		if assert.True(t, ok, topic) {
			assert.Equal(t, kind, route.Kind)
			assert.Equal(t, uint64(1), route.Endpoint.GardenId)
		}
	}

	assert.Equal(t, "garden/+/data", router.Filter(MessageTelemetry))
	assert.Equal(t, "garden/C1/command", router.Topic("C1", "command"))
}
