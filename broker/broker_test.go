package broker

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuTi2201/gardenR4-sub001/app"
)

func config() app.MqttConfig {
	return app.MqttConfig{
		Broker:         "tcp://broker:1883",
		ClientId:       "garden-mqtt",
		Username:       "engine",
		Password:       "secret",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

func TestClientId(t *testing.T) {
	a := ClientId("garden-mqtt")
	b := ClientId("garden-mqtt")

	assert.True(t, strings.HasPrefix(a, "garden-mqtt-"))
	assert.Len(t, a, len("garden-mqtt-")+8)
	assert.NotEqual(t, a, b)
}

func TestOptions(t *testing.T) {
	log, _ := test.NewNullLogger()

	opts := Options(config(), nil, log, Hooks{})

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.True(t, strings.HasPrefix(opts.ClientID, "garden-mqtt-"))
	assert.Equal(t, "engine", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.Order)
	assert.Equal(t, int64(30), opts.KeepAlive)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
}

func TestOptionsHooks(t *testing.T) {
	log, hook := test.NewNullLogger()

	var connected, reconnecting int
	var lost error

	opts := Options(config(), nil, log, Hooks{
		OnConnect:        func() { connected++ },
		OnConnectionLost: func(err error) { lost = err },
		OnReconnecting:   func() { reconnecting++ },
	})

	opts.OnConnect(nil)
	opts.OnConnectionLost(nil, errors.New("EOF"))
	opts.OnReconnecting(nil, opts)

	assert.Equal(t, 1, connected)
	assert.EqualError(t, lost, "EOF")
	assert.Equal(t, 1, reconnecting)
	assert.Len(t, hook.AllEntries(), 3)
}
