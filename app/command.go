package app

import (
	"context"
	"errors"
)

const (
	CommandBusChannelSize = 1000
)

var (
	ErrCommandQueueFull = errors.New("command queue full")
)

type CommandHandler func(cmd interface{}) error

// CommandBus runs commands in order on a single goroutine.
type CommandBus struct {
	app      *App
	queue    chan interface{}
	handlers map[string][]CommandHandler
}

func NewCommandBus(app *App) *CommandBus {
	return &CommandBus{
		app:      app,
		queue:    make(chan interface{}, CommandBusChannelSize),
		handlers: make(map[string][]CommandHandler),
	}
}

func (bus *CommandBus) Handle(command interface{}, handler CommandHandler) {
	cmd_id := getEventId(command)
	bus.app.Logger.Debugf("Registering command for id: %s", cmd_id)
	bus.handlers[cmd_id] = append(bus.handlers[cmd_id], handler)
}

func (bus *CommandBus) Listen(ctx context.Context) {
	bus.app.Logger.Debug("Listening for commands")

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-bus.queue:
			bus.run(cmd)
		}
	}
}

func (bus *CommandBus) run(cmd interface{}) {
	cmd_id := getEventId(cmd)
	bus.app.Logger.Debugf("Got command: %s -> %v", cmd_id, cmd)

	for _, handler := range bus.handlers[cmd_id] {
		if err := handler(cmd); err != nil {
			bus.app.Logger.WithField("error", err).Errorf("Error handling command: %s -> %v", cmd_id, cmd)
		}
	}
}

func (bus *CommandBus) Create(cmd interface{}) error {
	select {
	case bus.queue <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}
