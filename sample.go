package garden

import (
	"time"
)

type TelemetrySample struct {
	Id          uint64    `db:"id" json:"id" table:"telemetry_samples"`
	GardenId    uint64    `db:"garden_id" json:"garden_id"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	Temperature float64   `db:"temperature" json:"temperature"`
	Humidity    float64   `db:"humidity" json:"humidity"`
	Light       float64   `db:"light" json:"light"`
	Soil        float64   `db:"soil" json:"soil"`

	Fan      bool `db:"fan" json:"fan"`
	Lamp     bool `db:"lamp" json:"lamp"`
	Pump     bool `db:"pump" json:"pump"`
	Heater   bool `db:"heater" json:"heater"`
	AutoMode bool `db:"auto_mode" json:"auto_mode"`
}

type SampleCriteria struct {
	GardenId uint64    `schema:"garden_id" db:"garden_id"`
	From     time.Time `schema:"from"`
	To       time.Time `schema:"to"`

	Limit int `schema:"limit"`
}
