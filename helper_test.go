package garden_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

func TestGetUintParameter(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest("GET", "/garden/12", nil), map[string]string{
		"garden": "12",
		"serial": "C1",
	})

	id, err := garden.GetUintParameter(r, "garden")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	_, err = garden.GetUintParameter(r, "serial")
	assert.Error(t, err)

	_, err = garden.GetUintParameter(r, "device")
	assert.Error(t, err)
}

func TestRoom(t *testing.T) {
	assert.Equal(t, "garden_7", garden.Room(7))
	assert.Equal(t, "garden_7", garden.Endpoint{Serial: "K7", GardenId: 7}.Room())
}
