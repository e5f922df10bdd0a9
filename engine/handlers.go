package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/threshold"
)

const (
	EventDeviceStatus = "device_status"
	EventNewImage     = "new_image"

	StatusConnected = "connected"
)

type telemetryPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Light       *float64 `json:"light"`
	Soil        *float64 `json:"soil"`

	Fan      bool `json:"fan"`
	Lamp     bool `json:"lamp"`
	Pump     bool `json:"pump"`
	Heater   bool `json:"heater"`
	AutoMode bool `json:"auto_mode"`

	Timestamp *int64 `json:"timestamp"`
}

func (p telemetryPayload) missing() []string {
	var missing []string
	if p.Temperature == nil {
		missing = append(missing, "temperature")
	}
	if p.Humidity == nil {
		missing = append(missing, "humidity")
	}
	if p.Light == nil {
		missing = append(missing, "light")
	}
	if p.Soil == nil {
		missing = append(missing, "soil")
	}
	return missing
}

type statusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DeviceStatus is the payload of device_status.
type DeviceStatus struct {
	Serial    string            `json:"serial"`
	Kind      garden.DeviceKind `json:"kind"`
	GardenId  uint64            `json:"garden_id"`
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

type imagePayload struct {
	Url          string  `json:"url"`
	ThumbnailUrl *string `json:"thumbnail_url"`
}

type logPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type LiveChannels struct {
	Primary string
	Legacy  string
}

// Handlers process one routed message each. Failures are logged and never
// returned.
type Handlers struct {
	records       garden.RecordStore
	gardens       garden.GardenStore
	notifications garden.NotificationSink
	evaluator     *threshold.Evaluator
	live          garden.LiveUpdateSink
	channels      LiveChannels
	now           func() time.Time
	log           logrus.FieldLogger
}

func NewHandlers(records garden.RecordStore, gardens garden.GardenStore, notifications garden.NotificationSink, live garden.LiveUpdateSink, channels LiveChannels, now func() time.Time, log logrus.FieldLogger) *Handlers {
	if now == nil {
		now = time.Now
	}

	return &Handlers{
		records:       records,
		gardens:       gardens,
		notifications: notifications,
		evaluator:     threshold.NewEvaluator(notifications, log),
		live:          live,
		channels:      channels,
		now:           now,
		log:           log.WithField("component", "handlers"),
	}
}

func (h *Handlers) Handle(ctx context.Context, route Route, payload []byte) {
	switch route.Kind {
	case MessageTelemetry:
		h.Telemetry(ctx, route.Endpoint, payload)
	case MessageStatus:
		h.Status(ctx, route.Endpoint, payload)
	case MessageImage:
		h.Image(ctx, route.Endpoint, payload)
	case MessageLog:
		h.Log(ctx, route.Endpoint, payload)
	}
}

func (h *Handlers) emit(ctx context.Context, e garden.Endpoint, event string, payload interface{}) {
	if err := h.live.EmitToRoom(ctx, e.Room(), event, payload); err != nil {
		h.log.WithField("event", event).WithField("garden_id", e.GardenId).WithField("error", err).Warn("Error emitting live update")
	}
}

func (h *Handlers) drop(e garden.Endpoint, kind MessageKind, err error) {
	h.log.WithFields(logrus.Fields{
		"serial": e.Serial,
		"kind":   kind,
		"error":  err,
	}).Warn("Dropping malformed payload")
}

func (h *Handlers) Telemetry(ctx context.Context, e garden.Endpoint, payload []byte) {
	var p telemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.drop(e, MessageTelemetry, err)
		return
	}
	if missing := p.missing(); len(missing) > 0 {
		h.drop(e, MessageTelemetry, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
		return
	}

	timestamp := h.now().UTC()
	if p.Timestamp != nil && *p.Timestamp > 0 {
		timestamp = time.Unix(*p.Timestamp, 0).UTC()
	}

	sample := garden.TelemetrySample{
		GardenId:    e.GardenId,
		Timestamp:   timestamp,
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
		Light:       *p.Light,
		Soil:        *p.Soil,
		Fan:         p.Fan,
		Lamp:        p.Lamp,
		Pump:        p.Pump,
		Heater:      p.Heater,
		AutoMode:    p.AutoMode,
	}

	if err := h.records.SaveSample(ctx, &sample); err != nil {
		h.log.WithField("garden_id", e.GardenId).WithField("error", err).Error("Error saving telemetry sample")
	}

	h.emit(ctx, e, h.channels.Primary, sample)
	if h.channels.Legacy != "" && h.channels.Legacy != h.channels.Primary {
		h.emit(ctx, e, h.channels.Legacy, sample)
	}

	g, err := h.gardens.Garden(ctx, e.GardenId)
	if err != nil {
		h.log.WithField("garden_id", e.GardenId).WithField("error", err).Error("Error loading thresholds")
		return
	}

	h.evaluator.Check(ctx, g, sample, h.live)
}

func (h *Handlers) Status(ctx context.Context, e garden.Endpoint, payload []byte) {
	var p statusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		// Older firmware publishes the bare status word, quoted or not
		if err := json.Unmarshal(payload, &p.Status); err != nil {
			p.Status = strings.TrimSpace(string(payload))
		}
	}
	if p.Status == "" {
		h.drop(e, MessageStatus, fmt.Errorf("missing status"))
		return
	}

	now := h.now().UTC()
	h.emit(ctx, e, EventDeviceStatus, DeviceStatus{
		Serial:    e.Serial,
		Kind:      e.Kind,
		GardenId:  e.GardenId,
		Status:    p.Status,
		Message:   p.Message,
		Timestamp: now,
	})

	level := garden.SeverityWarning
	if strings.EqualFold(p.Status, StatusConnected) {
		level = garden.SeverityInfo
	}

	message := fmt.Sprintf("%s %s: %s", e.Kind, e.Serial, p.Status)
	if p.Message != "" {
		message += " - " + p.Message
	}

	entry := &garden.LogEntry{
		GardenId:  e.GardenId,
		Serial:    e.Serial,
		Source:    garden.SourceDevice,
		Level:     level,
		Message:   message,
		Timestamp: now,
	}
	if err := h.records.SaveLog(ctx, entry); err != nil {
		h.log.WithField("serial", e.Serial).WithField("error", err).Error("Error saving status log")
	}
}

func (h *Handlers) Image(ctx context.Context, e garden.Endpoint, payload []byte) {
	var p imagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.drop(e, MessageImage, err)
		return
	}
	if p.Url == "" {
		h.drop(e, MessageImage, fmt.Errorf("missing url"))
		return
	}

	image := garden.Image{
		GardenId:     e.GardenId,
		Url:          p.Url,
		ThumbnailUrl: p.ThumbnailUrl,
		Created:      h.now().UTC(),
	}
	if err := h.records.SaveImage(ctx, &image); err != nil {
		h.log.WithField("garden_id", e.GardenId).WithField("error", err).Error("Error saving image")
	}

	if err := h.gardens.MarkHasCamera(ctx, e.GardenId); err != nil {
		h.log.WithField("garden_id", e.GardenId).WithField("error", err).Error("Error marking garden with camera")
	}

	h.emit(ctx, e, EventNewImage, image)

	n := &garden.Notification{
		GardenId: e.GardenId,
		Kind:     garden.NotificationImage,
		Title:    "New image available",
		Message:  "A new image was captured",
		Severity: garden.SeverityInfo,
		Created:  image.Created,
	}

	g, err := h.gardens.Garden(ctx, e.GardenId)
	if err != nil {
		h.log.WithField("garden_id", e.GardenId).WithField("error", err).Warn("Error loading garden for image notification")
	} else {
		userId := g.UserId
		n.UserId = &userId
		n.Message = fmt.Sprintf("A new image of %s was captured", g.Name)
	}

	if err := h.notifications.Create(ctx, n); err != nil {
		h.log.WithField("garden_id", e.GardenId).WithField("error", err).Error("Error saving image notification")
	}
}

func severityOf(level string) garden.Severity {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "WARN", "WARNING":
		return garden.SeverityWarning
	case "ERR", "ERROR", "FATAL":
		return garden.SeverityError
	default:
		return garden.SeverityInfo
	}
}

func (h *Handlers) Log(ctx context.Context, e garden.Endpoint, payload []byte) {
	var p logPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.drop(e, MessageLog, err)
		return
	}
	if p.Message == "" {
		h.drop(e, MessageLog, fmt.Errorf("missing message"))
		return
	}

	entry := &garden.LogEntry{
		GardenId:  e.GardenId,
		Serial:    e.Serial,
		Source:    garden.SourceDevice,
		Level:     severityOf(p.Level),
		Message:   p.Message,
		Timestamp: h.now().UTC(),
	}
	if err := h.records.SaveLog(ctx, entry); err != nil {
		h.log.WithField("serial", e.Serial).WithField("error", err).Error("Error saving device log")
	}
}
