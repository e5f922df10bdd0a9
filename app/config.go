package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultHeartbeatTimeout = 60 * time.Second
	DefaultSweepInterval    = 30 * time.Second
)

type Config struct {
	LogLevel   string           `yaml:"LogLevel"`
	MariaDb    *string          `yaml:"MariaDB"`
	NsqTopic   *string          `yaml:"NsqTopic"`
	NsqLookupd *string          `yaml:"NsqLookupd"`
	Nsqd       *string          `yaml:"Nsqd"`
	Redis      *string          `yaml:"Redis"`
	Cassandra  *CassandraConfig `yaml:"Cassandra"`
	EventBus   *EventBusConfig  `yaml:"EventBus"`
	Mqtt       MqttConfig       `yaml:"Mqtt"`
	Presence   PresenceConfig   `yaml:"Presence"`
	Live       LiveConfig       `yaml:"Live"`
	Http       HttpConfig       `yaml:"Http"`
}

type MqttConfig struct {
	Broker         string        `yaml:"Broker"`
	ClientId       string        `yaml:"ClientId"`
	Username       string        `yaml:"Username"`
	Password       string        `yaml:"Password"`
	Namespace      string        `yaml:"Namespace"`
	Qos            byte          `yaml:"Qos"`
	KeepAlive      time.Duration `yaml:"KeepAlive"`
	ConnectTimeout time.Duration `yaml:"ConnectTimeout"`
	Tls            bool          `yaml:"Tls"`
}

type PresenceConfig struct {
	HeartbeatTimeout time.Duration `yaml:"HeartbeatTimeout"`
	SweepInterval    time.Duration `yaml:"SweepInterval"`
}

type LiveConfig struct {
	Sinks          []string `yaml:"Sinks"`
	Topic          string   `yaml:"Topic"`
	RedisPrefix    string   `yaml:"RedisPrefix"`
	PrimaryChannel string   `yaml:"PrimaryChannel"`
	LegacyChannel  string   `yaml:"LegacyChannel"`
}

type HttpConfig struct {
	Address string        `yaml:"Address"`
	Port    int           `yaml:"Port"`
	Timeout time.Duration `yaml:"Timeout"`
}

func LoadConfig(env string) (*Config, error) {
	return LoadConfigFile(fmt.Sprintf("config/%s.yaml", env))
}

func LoadConfigFile(path string) (*Config, error) {
	config_file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer config_file.Close()

	var config Config

	if err := yaml.NewDecoder(config_file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	config.setDefaults()

	return &config, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Mqtt.Broker == "" {
		c.Mqtt.Broker = "tcp://localhost:1883"
	}
	if c.Mqtt.ClientId == "" {
		c.Mqtt.ClientId = "garden-mqtt"
	}
	if c.Mqtt.Namespace == "" {
		c.Mqtt.Namespace = "garden"
	}
	if c.Mqtt.Qos == 0 {
		c.Mqtt.Qos = 1
	}
	if c.Mqtt.KeepAlive == 0 {
		c.Mqtt.KeepAlive = 30 * time.Second
	}
	if c.Mqtt.ConnectTimeout == 0 {
		c.Mqtt.ConnectTimeout = 10 * time.Second
	}

	if c.Presence.HeartbeatTimeout == 0 {
		c.Presence.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.Presence.SweepInterval == 0 {
		c.Presence.SweepInterval = DefaultSweepInterval
	}

	if len(c.Live.Sinks) == 0 {
		c.Live.Sinks = []string{"nsq"}
	}
	if c.Live.Topic == "" {
		c.Live.Topic = "garden.live"
	}
	if c.Live.RedisPrefix == "" {
		c.Live.RedisPrefix = "live"
	}
	if c.Live.PrimaryChannel == "" {
		c.Live.PrimaryChannel = "sensor_data"
	}
	if c.Live.LegacyChannel == "" {
		c.Live.LegacyChannel = "sensor_data_update"
	}

	if c.Http.Address == "" {
		c.Http.Address = "0.0.0.0"
	}
	if c.Http.Port == 0 {
		c.Http.Port = 4010
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 120 * time.Second
	}

	if c.EventBus == nil {
		c.EventBus = &EventBusConfig{NumHandlers: 1}
	}
}
