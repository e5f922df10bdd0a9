package main

import (
	"context"
	"fmt"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/engine"
)

type commandQueue interface {
	Create(cmd interface{}) error
}

// scheduledCommandReceived moves scheduler events off the nsq handler onto
// the command bus.
func scheduledCommandReceived(queue commandQueue) app.EventHandlerFunc {
	return func(event interface{}) error {
		return queue.Create(event.(garden.ScheduledCommand))
	}
}

type dispatcher interface {
	Dispatch(ctx context.Context, serial string, channel string, action bool, actor *garden.Actor) (*garden.CommandRecord, error)
}

func dispatchScheduled(d dispatcher) app.CommandHandler {
	return func(cmd interface{}) error {
		c, ok := cmd.(garden.ScheduledCommand)
		if !ok {
			return fmt.Errorf("unexpected command %T", cmd)
		}

		_, err := d.Dispatch(context.Background(), c.Serial, c.Channel, c.Action, nil)
		return err
	}
}

var _ dispatcher = (*engine.Service)(nil)
