// Package broker builds the MQTT client the engine talks through.
package broker

import (
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DuTi2201/gardenR4-sub001/app"
)

const (
	ConnectRetryInterval = 5 * time.Second
	DisconnectQuiesce    = 250
)

// Hooks are called from the paho callback goroutines.
type Hooks struct {
	OnConnect        func()
	OnConnectionLost func(err error)
	OnReconnecting   func()
}

type Client struct {
	mqtt.Client

	config app.MqttConfig
	log    logrus.FieldLogger
}

// ClientId appends a random suffix so two processes never steal each others
// session.
func ClientId(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

func Options(config app.MqttConfig, tlsConfig *tls.Config, log logrus.FieldLogger, hooks Hooks) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(ClientId(config.ClientId)).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetryInterval(ConnectRetryInterval).
		SetKeepAlive(config.KeepAlive).
		SetConnectTimeout(config.ConnectTimeout).
		SetOrderMatters(true)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.WithField("broker", config.Broker).Info("Connected to broker")
		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.WithField("broker", config.Broker).WithField("error", err).Warn("Connection to broker lost")
		if hooks.OnConnectionLost != nil {
			hooks.OnConnectionLost(err)
		}
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.WithField("broker", config.Broker).Info("Reconnecting to broker")
		if hooks.OnReconnecting != nil {
			hooks.OnReconnecting()
		}
	})

	return opts
}

func New(config app.MqttConfig, tlsConfig *tls.Config, log logrus.FieldLogger, hooks Hooks) *Client {
	log = log.WithField("component", "broker")

	return &Client{
		Client: mqtt.NewClient(Options(config, tlsConfig, log, hooks)),
		config: config,
		log:    log,
	}
}

func (c *Client) Connect() error {
	token := c.Client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("timeout connecting to %s", c.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to %s: %w", c.config.Broker, err)
	}

	return nil
}

func (c *Client) Close() {
	c.Client.Disconnect(DisconnectQuiesce)
	c.log.Info("Disconnected from broker")
}
