package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuTi2201/gardenR4-sub001/app"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := app.LoadConfigFile(writeConfig(t, "LogLevel: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "tcp://localhost:1883", config.Mqtt.Broker)
	assert.Equal(t, "garden", config.Mqtt.Namespace)
	assert.Equal(t, byte(1), config.Mqtt.Qos)
	assert.Equal(t, app.DefaultHeartbeatTimeout, config.Presence.HeartbeatTimeout)
	assert.Equal(t, app.DefaultSweepInterval, config.Presence.SweepInterval)
	assert.Equal(t, []string{"nsq"}, config.Live.Sinks)
	assert.Equal(t, "sensor_data", config.Live.PrimaryChannel)
	assert.Equal(t, "sensor_data_update", config.Live.LegacyChannel)
	assert.Equal(t, 4010, config.Http.Port)
	require.NotNil(t, config.EventBus)
	assert.Equal(t, 1, config.EventBus.NumHandlers)
	assert.Nil(t, config.MariaDb)
	assert.Nil(t, config.Cassandra)
}

func TestLoadConfigOverrides(t *testing.T) {
	config, err := app.LoadConfigFile(writeConfig(t, `
LogLevel: warn
MariaDB: "garden:garden@tcp(localhost:3306)/garden?parseTime=true"
Mqtt:
  Broker: ssl://broker:8883
  Namespace: farm
  Qos: 2
  Tls: true
Presence:
  HeartbeatTimeout: 45s
  SweepInterval: 10s
Live:
  Sinks: [nsq, redis]
  LegacyChannel: legacy
`))
	require.NoError(t, err)

	require.NotNil(t, config.MariaDb)
	assert.Equal(t, "ssl://broker:8883", config.Mqtt.Broker)
	assert.Equal(t, "farm", config.Mqtt.Namespace)
	assert.Equal(t, byte(2), config.Mqtt.Qos)
	assert.True(t, config.Mqtt.Tls)
	assert.Equal(t, 45*time.Second, config.Presence.HeartbeatTimeout)
	assert.Equal(t, 10*time.Second, config.Presence.SweepInterval)
	assert.Equal(t, []string{"nsq", "redis"}, config.Live.Sinks)
	assert.Equal(t, "legacy", config.Live.LegacyChannel)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := app.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = app.LoadConfigFile(writeConfig(t, "Mqtt: [broken"))
	assert.Error(t, err)
}

func TestNewWithConfigRejectsLogLevel(t *testing.T) {
	_, err := app.NewWithConfig("test", &app.Config{LogLevel: "loud"})
	assert.Error(t, err)
}
