package garden

import (
	"fmt"
	"time"
)

type DeviceKind string

const (
	Controller DeviceKind = "controller"
	Camera     DeviceKind = "camera"
)

// Endpoint is one addressable unit in the pub/sub namespace. A garden has at
// most one endpoint of each kind.
type Endpoint struct {
	Id                 uint64     `db:"id" json:"id" table:"devices"`
	Serial             string     `db:"serial" json:"serial"`
	Kind               DeviceKind `db:"kind" json:"kind"`
	GardenId           uint64     `db:"garden_id" json:"garden_id"`
	Online             bool       `db:"online" json:"online"`
	LastSeenAt         *time.Time `db:"last_seen_at" json:"last_seen_at"`
	LastDisconnectedAt *time.Time `db:"last_disconnected_at" json:"last_disconnected_at"`
}

func (e Endpoint) Room() string {
	return Room(e.GardenId)
}

func Room(gardenId uint64) string {
	return fmt.Sprintf("garden_%d", gardenId)
}

type EndpointCriteria struct {
	Id       uint64     `schema:"id" db:"id"`
	Serial   string     `schema:"serial" db:"serial"`
	Kind     DeviceKind `schema:"kind" db:"kind"`
	GardenId uint64     `schema:"garden_id" db:"garden_id"`
	Online   bool       `schema:"online" db:"online"`

	Limit int `schema:"limit"`
}
