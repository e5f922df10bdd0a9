package garden

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cmodk/go-simpleflake"
	"github.com/go-redis/redis/v8"
	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	"github.com/DuTi2201/gardenR4-sub001/app"
)

const (
	PresenceLastSeenKey = "presence:last_seen"
)

// Store is the MySQL backed implementation of every collaborator the engine
// needs. Samples go to Cassandra when a session is configured.
type Store struct {
	db  *app.Database
	ca  *gocql.Session
	re  *redis.Client
	log logrus.FieldLogger

	devices       *app.DatabaseRepository
	gardens       *app.DatabaseRepository
	commands      *app.DatabaseRepository
	logs          *app.DatabaseRepository
	images        *app.DatabaseRepository
	notifications *app.DatabaseRepository
	samples       *app.DatabaseRepository
}

func NewStore(a *app.App) *Store {
	return &Store{
		db:            a.Database,
		ca:            a.Cassandra,
		re:            a.Redis,
		log:           a.Logger,
		devices:       a.NewDatabaseRepository("devices"),
		gardens:       a.NewDatabaseRepository("gardens"),
		commands:      a.NewDatabaseRepository("command_records"),
		logs:          a.NewDatabaseRepository("garden_logs"),
		images:        a.NewDatabaseRepository("images"),
		notifications: a.NewDatabaseRepository("notifications"),
		samples:       a.NewDatabaseRepository("telemetry_samples"),
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) Resolve(ctx context.Context, serial string) (*Endpoint, error) {
	var e Endpoint
	if err := s.devices.Get(ctx, &e, EndpointCriteria{Serial: serial}); err != nil {
		return nil, notFound(err)
	}

	return &e, nil
}

func (s *Store) EndpointForGarden(ctx context.Context, gardenId uint64, kind DeviceKind) (*Endpoint, error) {
	var e Endpoint
	if err := s.devices.Get(ctx, &e, EndpointCriteria{GardenId: gardenId, Kind: kind}); err != nil {
		return nil, notFound(err)
	}

	return &e, nil
}

func presenceColumns(e Endpoint) map[string]interface{} {
	return map[string]interface{}{
		"online":               e.Online,
		"last_seen_at":         e.LastSeenAt,
		"last_disconnected_at": e.LastDisconnectedAt,
	}
}

func (s *Store) UpdatePresence(ctx context.Context, e Endpoint) error {
	query, args, err := squirrel.Update("devices").
		SetMap(presenceColumns(e)).
		Where(squirrel.Eq{"serial": e.Serial}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating presence of %s: %w", e.Serial, err)
	}

	if e.LastSeenAt != nil {
		s.mirrorLastSeen(ctx, e.Serial, *e.LastSeenAt)
	}

	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, serial string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE devices SET last_seen_at = ? WHERE serial = ?", at, serial); err != nil {
		return fmt.Errorf("updating last seen of %s: %w", serial, err)
	}

	s.mirrorLastSeen(ctx, serial, at)

	return nil
}

func (s *Store) mirrorLastSeen(ctx context.Context, serial string, at time.Time) {
	if s.re == nil {
		return
	}

	if err := s.re.HSet(ctx, PresenceLastSeenKey, serial, at.Unix()).Err(); err != nil {
		s.log.WithField("serial", serial).WithField("error", err).Warn("Error mirroring last seen to redis")
	}
}

func (s *Store) ListOnline(ctx context.Context) ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := s.devices.List(ctx, &endpoints, EndpointCriteria{Online: true}); err != nil {
		return nil, err
	}

	return endpoints, nil
}

func (s *Store) Garden(ctx context.Context, id uint64) (*Garden, error) {
	var g Garden
	if err := s.gardens.Get(ctx, &g, GardenCriteria{Id: id}); err != nil {
		return nil, notFound(err)
	}

	return &g, nil
}

func (s *Store) MarkHasCamera(ctx context.Context, id uint64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE gardens SET has_camera = 1 WHERE id = ? AND has_camera = 0", id)
	return err
}

func (s *Store) SetAutoMode(ctx context.Context, id uint64, enabled bool) error {
	updated, err := s.gardens.Update(ctx, id, map[string]interface{}{"auto_mode": enabled})
	if err != nil {
		return err
	}
	if !updated {
		s.log.WithField("garden_id", id).Debug("Auto mode unchanged")
	}

	return nil
}

func (s *Store) SaveSample(ctx context.Context, sample *TelemetrySample) error {
	if sample.Id == 0 {
		sample.Id = simpleflake.Next()
	}

	if s.ca == nil {
		return s.samples.Create(ctx, sample)
	}

	query := s.ca.Query("INSERT INTO samples_by_garden (garden_id,timestamp,id,temperature,humidity,light,soil,fan,lamp,pump,heater,auto_mode) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)",
		int64(sample.GardenId),
		sample.Timestamp,
		int64(sample.Id),
		sample.Temperature,
		sample.Humidity,
		sample.Light,
		sample.Soil,
		sample.Fan,
		sample.Lamp,
		sample.Pump,
		sample.Heater,
		sample.AutoMode).WithContext(ctx)

	return query.Exec()
}

func (s *Store) SaveLog(ctx context.Context, l *LogEntry) error {
	if l.Id == 0 {
		l.Id = simpleflake.Next()
	}
	return s.logs.Create(ctx, l)
}

func (s *Store) SaveImage(ctx context.Context, i *Image) error {
	if i.Id == 0 {
		i.Id = simpleflake.Next()
	}
	return s.images.Create(ctx, i)
}

func (s *Store) SaveCommand(ctx context.Context, c *CommandRecord) error {
	if c.Id == 0 {
		c.Id = simpleflake.Next()
	}
	return s.commands.Create(ctx, c)
}

func (s *Store) ListCommands(ctx context.Context, c CommandCriteria) ([]CommandRecord, error) {
	if c.OrderBy == "" {
		c.OrderBy = "created DESC"
	}

	var commands []CommandRecord
	if err := s.commands.List(ctx, &commands, c); err != nil {
		return nil, err
	}

	return commands, nil
}

// Create stores a durable notification, it implements NotificationSink.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.Id == 0 {
		n.Id = simpleflake.Next()
	}
	return s.notifications.Create(ctx, n)
}
