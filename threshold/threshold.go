// Package threshold compares telemetry samples against the bounds configured
// for their garden.
package threshold

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

const (
	EventAlerts = "threshold_alerts"

	BoundMin = "min"
	BoundMax = "max"
)

type Alert struct {
	Channel  string          `json:"channel"`
	Bound    string          `json:"bound"`
	Value    float64         `json:"value"`
	Limit    float64         `json:"limit"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Severity garden.Severity `json:"severity"`
}

// AlertBatch is the payload of one threshold_alerts event.
type AlertBatch struct {
	GardenId uint64  `json:"garden_id"`
	Alerts   []Alert `json:"alerts"`
}

type channel struct {
	name     string
	label    string
	unit     string
	severity garden.Severity
	value    func(s garden.TelemetrySample) float64
	min      func(t garden.Thresholds) *float64
	max      func(t garden.Thresholds) *float64
}

// Light breaches are INFO while the others are WARNING, existing
// notification consumers depend on it.
var channels = []channel{
	{
		name: "temperature", label: "Temperature", unit: "°C", severity: garden.SeverityWarning,
		value: func(s garden.TelemetrySample) float64 { return s.Temperature },
		min:   func(t garden.Thresholds) *float64 { return t.TemperatureMin },
		max:   func(t garden.Thresholds) *float64 { return t.TemperatureMax },
	},
	{
		name: "humidity", label: "Humidity", unit: "%", severity: garden.SeverityWarning,
		value: func(s garden.TelemetrySample) float64 { return s.Humidity },
		min:   func(t garden.Thresholds) *float64 { return t.HumidityMin },
		max:   func(t garden.Thresholds) *float64 { return t.HumidityMax },
	},
	{
		name: "light", label: "Light", unit: "lux", severity: garden.SeverityInfo,
		value: func(s garden.TelemetrySample) float64 { return s.Light },
		min:   func(t garden.Thresholds) *float64 { return t.LightMin },
		max:   func(t garden.Thresholds) *float64 { return t.LightMax },
	},
	{
		name: "soil", label: "Soil moisture", unit: "%", severity: garden.SeverityWarning,
		value: func(s garden.TelemetrySample) float64 { return s.Soil },
		min:   func(t garden.Thresholds) *float64 { return t.SoilMin },
		max:   func(t garden.Thresholds) *float64 { return t.SoilMax },
	},
}

// Evaluate returns one alert per breached bound. Unset bounds are skipped.
func Evaluate(t garden.Thresholds, s garden.TelemetrySample) []Alert {
	var alerts []Alert

	for _, c := range channels {
		value := c.value(s)

		if min := c.min(t); min != nil && value < *min {
			alerts = append(alerts, Alert{
				Channel:  c.name,
				Bound:    BoundMin,
				Value:    value,
				Limit:    *min,
				Title:    fmt.Sprintf("%s too low", c.label),
				Message:  fmt.Sprintf("%s is %.1f%s, below the minimum of %.1f%s", c.label, value, c.unit, *min, c.unit),
				Severity: c.severity,
			})
		}

		if max := c.max(t); max != nil && value > *max {
			alerts = append(alerts, Alert{
				Channel:  c.name,
				Bound:    BoundMax,
				Value:    value,
				Limit:    *max,
				Title:    fmt.Sprintf("%s too high", c.label),
				Message:  fmt.Sprintf("%s is %.1f%s, above the maximum of %.1f%s", c.label, value, c.unit, *max, c.unit),
				Severity: c.severity,
			})
		}
	}

	return alerts
}

type Evaluator struct {
	notifications garden.NotificationSink
	log           logrus.FieldLogger
}

func NewEvaluator(notifications garden.NotificationSink, log logrus.FieldLogger) *Evaluator {
	return &Evaluator{
		notifications: notifications,
		log:           log.WithField("component", "threshold"),
	}
}

// Check evaluates s against the bounds of g, stores a notification per alert
// and emits all of them as one event. Nothing is emitted without alerts.
func (e *Evaluator) Check(ctx context.Context, g *garden.Garden, s garden.TelemetrySample, live garden.LiveUpdateSink) []Alert {
	alerts := Evaluate(g.Thresholds, s)
	if len(alerts) == 0 {
		return nil
	}

	for _, a := range alerts {
		userId := g.UserId
		n := &garden.Notification{
			GardenId: g.Id,
			UserId:   &userId,
			Kind:     garden.NotificationThreshold,
			Title:    a.Title,
			Message:  a.Message,
			Severity: a.Severity,
			Created:  s.Timestamp,
		}

		if err := e.notifications.Create(ctx, n); err != nil {
			e.log.WithFields(logrus.Fields{
				"garden_id": g.Id,
				"channel":   a.Channel,
				"error":     err,
			}).Error("Error saving threshold notification")
		}
	}

	if live != nil {
		batch := AlertBatch{GardenId: g.Id, Alerts: alerts}
		if err := live.EmitToRoom(ctx, garden.Room(g.Id), EventAlerts, batch); err != nil {
			e.log.WithField("garden_id", g.Id).WithField("error", err).Warn("Error emitting threshold alerts")
		}
	}

	e.log.WithField("garden_id", g.Id).WithField("count", len(alerts)).Debug("Threshold alerts raised")

	return alerts
}
