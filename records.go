package garden

import (
	"time"
)

type LogSource string

const (
	SourceDevice LogSource = "DEVICE"
	SourceSystem LogSource = "SYSTEM"
)

type LogEntry struct {
	Id        uint64    `db:"id" json:"id" table:"garden_logs"`
	GardenId  uint64    `db:"garden_id" json:"garden_id"`
	Serial    string    `db:"serial" json:"serial"`
	Source    LogSource `db:"source" json:"source"`
	Level     Severity  `db:"level" json:"level"`
	Message   string    `db:"message" json:"message"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

type Image struct {
	Id           uint64    `db:"id" json:"id" table:"images"`
	GardenId     uint64    `db:"garden_id" json:"garden_id"`
	Url          string    `db:"url" json:"url"`
	ThumbnailUrl *string   `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	Created      time.Time `db:"created" json:"created"`
}

const (
	NotificationThreshold = "threshold"
	NotificationImage     = "image"
)

type Notification struct {
	Id       uint64    `db:"id" json:"id" table:"notifications"`
	GardenId uint64    `db:"garden_id" json:"garden_id"`
	UserId   *uint64   `db:"user_id" json:"user_id,omitempty"`
	Kind     string    `db:"kind" json:"kind"`
	Title    string    `db:"title" json:"title"`
	Message  string    `db:"message" json:"message"`
	Severity Severity  `db:"severity" json:"severity"`
	Read     bool      `db:"is_read" json:"read"`
	Created  time.Time `db:"created" json:"created"`
}
