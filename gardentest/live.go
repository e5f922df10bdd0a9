package gardentest

import (
	"context"
	"sync"
)

type Emission struct {
	Room    string
	Event   string
	Payload interface{}
}

// Live records every emitted event.
type Live struct {
	mu        sync.Mutex
	emissions []Emission

	Err error
}

func (l *Live) EmitToRoom(ctx context.Context, room string, event string, payload interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.emissions = append(l.emissions, Emission{room, event, payload})
	return l.Err
}

func (l *Live) Emissions() []Emission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Emission(nil), l.emissions...)
}

// Events returns the emissions with the given event name.
func (l *Live) Events(event string) []Emission {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matching []Emission
	for _, e := range l.emissions {
		if e.Event == event {
			matching = append(matching, e)
		}
	}
	return matching
}

func (l *Live) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emissions = nil
}
