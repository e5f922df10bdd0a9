package main

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/auth"
	"github.com/DuTi2201/gardenR4-sub001/broker"
	"github.com/DuTi2201/gardenR4-sub001/engine"
	"github.com/DuTi2201/gardenR4-sub001/live"
)

var (
	cors_origin = flag.String("cors-origin", "*", "Allowed origin for http requests")
)

func main() {
	flag.Parse()

	a := app.New()
	defer a.Close()
	lg := a.Logger

	if a.Database == nil {
		lg.Fatal("MariaDB is required")
	}

	if err := a.CheckAndUpdateDatabase(garden.DatabaseStructure); err != nil {
		lg.WithField("error", err).Fatal("Error updating database")
	}

	store := garden.NewStore(a)

	sink, err := live.FromConfig(a)
	if err != nil {
		lg.WithField("error", err).Fatal("Error configuring live updates")
	}

	service := engine.NewService(engine.StoresFrom(store), lg, engine.ConfigFrom(a.Config))

	var tls_config *tls.Config
	if a.Config.Mqtt.Tls {
		tls_config, err = a.BrokerTLSConfig()
		if err != nil {
			lg.WithField("error", err).Fatal("Error loading broker certificates")
		}
	}

	client := broker.New(a.Config.Mqtt, tls_config, lg, broker.Hooks{
		OnConnect:        service.HandleConnect,
		OnConnectionLost: service.HandleConnectionLost,
	})
	if err := client.Connect(); err != nil {
		lg.WithField("error", err).Fatal("Error connecting to broker")
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := service.Initialize(ctx, client, sink); err != nil {
		lg.WithField("error", err).Fatal("Error initializing engine")
	}

	a.HandleEvent(garden.ScheduledCommand{}, scheduledCommandReceived(a.Command))
	a.HandleCommand(garden.ScheduledCommand{}, dispatchScheduled(service))
	go a.Command.Listen(ctx)

	if a.Config.NsqTopic != nil && a.Config.NsqLookupd != nil {
		//Need seperate listen names per host for nsq channels
		hostname, err := os.Hostname()
		if err != nil {
			lg.WithField("error", err).Fatal("Error getting hostname")
		}
		a.Event.SetListenName(filepath.Base(os.Args[0]) + "-" + hostname)

		go func() {
			if err := a.Event.Listen(ctx); err != nil {
				lg.WithField("error", err).Error("Event bus stopped")
			}
		}()
	}

	a.Use(app.Cors(*cors_origin))
	a.Use(auth.NewMiddleware(auth.NewDatabaseKeys(a.Database), lg))

	api := NewApi(a, service, store, store, store)
	api.Routes()

	if err := a.Run(ctx); err != nil {
		lg.WithField("error", err).Error("Http server stopped")
	}

	service.Close()
}
