package garden

import (
	"time"
)

type CommandOutcome string

const (
	// The record is written before the transport confirms delivery and is
	// never updated afterwards, so it documents the attempt only.
	OutcomeAttempted  CommandOutcome = "attempted"
	OutcomeSuppressed CommandOutcome = "suppressed"
)

type CommandRecord struct {
	Id       uint64         `db:"id" json:"id" table:"command_records"`
	GardenId uint64         `db:"garden_id" json:"garden_id"`
	Serial   string         `db:"serial" json:"serial"`
	Channel  string         `db:"channel" json:"channel"`
	Action   string         `db:"action" json:"action"`
	ActorId  *uint64        `db:"actor_id" json:"actor_id"`
	Outcome  CommandOutcome `db:"outcome" json:"outcome"`
	Created  time.Time      `db:"created" json:"created"`
}

type CommandCriteria struct {
	GardenId uint64 `schema:"garden_id" db:"garden_id"`
	Channel  string `schema:"channel" db:"channel"`
	OrderBy  string `schema:"-"`

	Limit int `schema:"limit"`
}

// ScheduledCommand is published on the event bus by the scheduler.
type ScheduledCommand struct {
	Serial  string    `json:"serial"`
	Channel string    `json:"channel"`
	Action  bool      `json:"action"`
	Created time.Time `json:"created"`
}
