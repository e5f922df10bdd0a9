package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

type MessageKind string

const (
	MessageTelemetry MessageKind = "data"
	MessageStatus    MessageKind = "status"
	MessageImage     MessageKind = "image"
	MessageLog       MessageKind = "logs"
)

var MessageKinds = []MessageKind{MessageTelemetry, MessageStatus, MessageImage, MessageLog}

func (k MessageKind) known() bool {
	for _, known := range MessageKinds {
		if k == known {
			return true
		}
	}
	return false
}

// acceptedFrom reports whether an endpoint of the given kind may publish k.
// Cameras only report images and status.
func (k MessageKind) acceptedFrom(kind garden.DeviceKind) bool {
	if kind == garden.Camera {
		return k == MessageImage || k == MessageStatus
	}
	return true
}

type Route struct {
	Serial   string
	Kind     MessageKind
	Endpoint garden.Endpoint
}

// Router maps <namespace>/<serial>/<kind> topics to endpoints. It only reads.
type Router struct {
	namespace string
	directory garden.Directory
	log       logrus.FieldLogger
}

func NewRouter(namespace string, directory garden.Directory, log logrus.FieldLogger) *Router {
	return &Router{
		namespace: namespace,
		directory: directory,
		log:       log.WithField("component", "router"),
	}
}

func (r *Router) Topic(serial string, suffix string) string {
	return r.namespace + "/" + serial + "/" + suffix
}

func (r *Router) Filter(kind MessageKind) string {
	return r.Topic("+", string(kind))
}

// Route resolves topic. A false return means the message is dropped, the
// reason has been logged.
func (r *Router) Route(ctx context.Context, topic string) (Route, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != r.namespace || parts[1] == "" {
		r.log.WithField("topic", topic).Warn("Dropping message on malformed topic")
		return Route{}, false
	}

	serial := parts[1]
	kind := MessageKind(parts[2])
	if !kind.known() {
		r.log.WithField("topic", topic).Warn("Dropping message of unknown kind")
		return Route{}, false
	}

	e, err := r.directory.Resolve(ctx, serial)
	if err != nil {
		if errors.Is(err, garden.ErrNotFound) {
			r.log.WithField("serial", serial).Debug("Dropping message from unprovisioned device")
		} else {
			r.log.WithField("serial", serial).WithField("error", err).Error("Error resolving device")
		}
		return Route{}, false
	}

	if !kind.acceptedFrom(e.Kind) {
		r.log.WithField("serial", serial).WithField("kind", kind).Debug("Ignoring message kind from camera")
		return Route{}, false
	}

	return Route{
		Serial:   serial,
		Kind:     kind,
		Endpoint: *e,
	}, true
}
