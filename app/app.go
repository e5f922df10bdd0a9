package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"reflect"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gocql/gocql"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

var (
	app_debug            = flag.Bool("debug", false, "Enable debug logging, overrides config")
	app_disable_tls      = flag.Bool("disable-tls", false, "Connect to the broker without tls")
	app_certificate_path = flag.String("certificate-path", "./certificates", "Search path for broker certificates")

	http_address = flag.String("http-address", "", "Listening address for http connections, overrides config")
	http_port    = flag.Int("http-port", 0, "Listening port for http connections, overrides config")
)

type App struct {
	Environment string
	Config      *Config
	Router      *mux.Router
	Http        *http.Server
	Negroni     *negroni.Negroni
	Logger      *logrus.Logger
	Database    *Database
	NsqProducer *nsq.Producer
	Cassandra   *gocql.Session
	Redis       *redis.Client

	Command *CommandBus
	Event   *EventBus

	EnableHttp bool

	CertificatePath string
}

func New() *App {
	env := os.Getenv("GARDEN_ENV")
	if env == "" {
		env = "dev"
	}

	config, err := LoadConfig(env)
	if err != nil {
		panic(err)
	}

	app, err := NewWithConfig(env, config)
	if err != nil {
		panic(err)
	}

	return app
}

// NewWithConfig builds the container and connects every backend present in
// the config.
func NewWithConfig(env string, config *Config) (*App, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}
	log.Level = level
	if *app_debug {
		log.Level = logrus.DebugLevel
	}

	if *app_disable_tls {
		config.Mqtt.Tls = false
	}

	log.Debugf("Running in environment: %s", env)

	if *http_address != "" {
		config.Http.Address = *http_address
	}
	if *http_port != 0 {
		config.Http.Port = *http_port
	}

	app := &App{
		Environment:     env,
		Config:          config,
		Router:          mux.NewRouter(),
		Logger:          log,
		CertificatePath: *app_certificate_path,
	}

	app.Command = NewCommandBus(app)
	app.Event = NewEventBus(app)

	if config.Nsqd != nil {
		app.NsqProducer, err = nsq.NewProducer(*config.Nsqd, nsq.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("nsq producer: %w", err)
		}
	}

	if config.Cassandra != nil {
		app.Cassandra, err = ConnectCassandra(*config.Cassandra)
		if err != nil {
			return nil, fmt.Errorf("cassandra: %w", err)
		}
	}

	if config.Redis != nil {
		app.Redis, err = ConnectRedis(*config.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	if config.MariaDb != nil {
		if err := app.ConnectMariadb(); err != nil {
			return nil, fmt.Errorf("mariadb: %w", err)
		}
	}

	app.Negroni = negroni.New()

	return app, nil
}

func (app *App) ConnectMariadb() error {
	db, err := sqlx.Connect("mysql", *app.Config.MariaDb)
	if err != nil {
		return err
	}

	app.Database = &Database{db, app.Logger}

	return nil
}

// Run serves http, if any route was registered, until ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	if !app.EnableHttp {
		<-ctx.Done()
		return nil
	}

	app.Negroni.UseHandler(app.Router)

	app.Http = &http.Server{
		Handler:      app.Negroni,
		Addr:         fmt.Sprintf("%s:%d", app.Config.Http.Address, app.Config.Http.Port),
		WriteTimeout: app.Config.Http.Timeout,
		ReadTimeout:  app.Config.Http.Timeout,
	}

	go func() {
		<-ctx.Done()
		if err := app.Http.Shutdown(context.Background()); err != nil {
			app.Logger.WithField("error", err).Error("Error shutting down http server")
		}
	}()

	app.Logger.WithField("addr", app.Http.Addr).Info("Listening for http connections")
	if err := app.Http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (app *App) Close() {
	if app.NsqProducer != nil {
		app.NsqProducer.Stop()
	}
	if app.Cassandra != nil {
		app.Cassandra.Close()
	}
	if app.Redis != nil {
		app.Redis.Close()
	}
	if app.Database != nil {
		app.Database.Close()
	}
}

func (app *App) HandleEvent(event interface{}, handler EventHandlerFunc) {
	app.Event.Handle(event, handler)
}

func (app *App) HandleCommand(cmd interface{}, handler CommandHandler) {
	app.Command.Handle(cmd, handler)
}

func (app *App) Use(h negroni.Handler) {
	app.Negroni.Use(h)
}

func (app *App) Get(path string, handler http.HandlerFunc) {
	app.EnableHttp = true
	app.Router.HandleFunc(path, handler).Methods("GET")
}

func (app *App) Post(path string, handler http.HandlerFunc) {
	app.EnableHttp = true
	app.Router.HandleFunc(path, handler).Methods("POST")
}

func getEventId(event interface{}) string {
	t := reflect.TypeOf(event)
	return t.String()
}
