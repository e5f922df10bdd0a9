package garden

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

type Garden struct {
	Id        uint64    `db:"id" json:"id" table:"gardens"`
	UserId    uint64    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	AutoMode  bool      `db:"auto_mode" json:"auto_mode"`
	HasCamera bool      `db:"has_camera" json:"has_camera"`
	Created   time.Time `db:"created" json:"created"`

	Thresholds
}

type GardenCriteria struct {
	Id     uint64 `schema:"id" db:"id"`
	UserId uint64 `schema:"user_id" db:"user_id"`

	Limit int `schema:"limit"`
}

// Thresholds are the configured bounds per channel. A nil bound is not
// evaluated.
type Thresholds struct {
	TemperatureMin *float64 `db:"temperature_min" json:"temperature_min"`
	TemperatureMax *float64 `db:"temperature_max" json:"temperature_max"`
	HumidityMin    *float64 `db:"humidity_min" json:"humidity_min"`
	HumidityMax    *float64 `db:"humidity_max" json:"humidity_max"`
	LightMin       *float64 `db:"light_min" json:"light_min"`
	LightMax       *float64 `db:"light_max" json:"light_max"`
	SoilMin        *float64 `db:"soil_min" json:"soil_min"`
	SoilMax        *float64 `db:"soil_max" json:"soil_max"`
}

// Actor is the user behind a command. A nil *Actor means the system or the
// scheduler.
type Actor struct {
	UserId uint64 `json:"user_id"`
}

// Directory resolves serial numbers to the endpoint that owns them.
type Directory interface {
	Resolve(ctx context.Context, serial string) (*Endpoint, error)
	EndpointForGarden(ctx context.Context, gardenId uint64, kind DeviceKind) (*Endpoint, error)
}

type PresenceStore interface {
	UpdatePresence(ctx context.Context, e Endpoint) error
	TouchLastSeen(ctx context.Context, serial string, at time.Time) error
	ListOnline(ctx context.Context) ([]Endpoint, error)
}

type GardenStore interface {
	Garden(ctx context.Context, id uint64) (*Garden, error)
	MarkHasCamera(ctx context.Context, id uint64) error
	SetAutoMode(ctx context.Context, id uint64, enabled bool) error
}

type RecordStore interface {
	SaveSample(ctx context.Context, s *TelemetrySample) error
	SaveLog(ctx context.Context, l *LogEntry) error
	SaveImage(ctx context.Context, i *Image) error
	SaveCommand(ctx context.Context, c *CommandRecord) error
}

type NotificationSink interface {
	Create(ctx context.Context, n *Notification) error
}

// LiveUpdateSink broadcasts an event to every client watching a room.
type LiveUpdateSink interface {
	EmitToRoom(ctx context.Context, room string, event string, payload interface{}) error
}
