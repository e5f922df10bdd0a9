// Package gardentest holds in-memory implementations of the garden
// collaborators for tests.
package gardentest

import (
	"context"
	"sync"
	"time"

	garden "github.com/DuTi2201/gardenR4-sub001"
)

// Store implements Directory, PresenceStore, GardenStore, RecordStore and
// NotificationSink over maps.
type Store struct {
	mu sync.Mutex

	endpoints map[string]garden.Endpoint
	gardens   map[uint64]garden.Garden

	Samples       []garden.TelemetrySample
	Logs          []garden.LogEntry
	Images        []garden.Image
	Commands      []garden.CommandRecord
	Notifications []garden.Notification

	PresenceWrites int

	// Set any of these to make the matching writes fail.
	PresenceErr error
	SampleErr   error
	CommandErr  error
}

func NewStore() *Store {
	return &Store{
		endpoints: make(map[string]garden.Endpoint),
		gardens:   make(map[uint64]garden.Garden),
	}
}

func (s *Store) AddGarden(g garden.Garden) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gardens[g.Id] = g
}

func (s *Store) AddEndpoint(e garden.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[e.Serial] = e
}

// Endpoint returns the stored copy of serial.
func (s *Store) Endpoint(serial string) garden.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoints[serial]
}

func (s *Store) Resolve(ctx context.Context, serial string) (*garden.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.endpoints[serial]
	if !ok {
		return nil, garden.ErrNotFound
	}
	return &e, nil
}

func (s *Store) EndpointForGarden(ctx context.Context, gardenId uint64, kind garden.DeviceKind) (*garden.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.endpoints {
		if e.GardenId == gardenId && e.Kind == kind {
			return &e, nil
		}
	}
	return nil, garden.ErrNotFound
}

func (s *Store) UpdatePresence(ctx context.Context, e garden.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PresenceWrites++
	if s.PresenceErr != nil {
		return s.PresenceErr
	}

	stored, ok := s.endpoints[e.Serial]
	if !ok {
		return garden.ErrNotFound
	}
	stored.Online = e.Online
	stored.LastSeenAt = e.LastSeenAt
	stored.LastDisconnectedAt = e.LastDisconnectedAt
	s.endpoints[e.Serial] = stored

	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, serial string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PresenceWrites++
	if s.PresenceErr != nil {
		return s.PresenceErr
	}

	stored, ok := s.endpoints[serial]
	if !ok {
		return garden.ErrNotFound
	}
	stored.LastSeenAt = &at
	s.endpoints[serial] = stored

	return nil
}

func (s *Store) ListOnline(ctx context.Context) ([]garden.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var online []garden.Endpoint
	for _, e := range s.endpoints {
		if e.Online {
			online = append(online, e)
		}
	}
	return online, nil
}

func (s *Store) Garden(ctx context.Context, id uint64) (*garden.Garden, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gardens[id]
	if !ok {
		return nil, garden.ErrNotFound
	}
	return &g, nil
}

func (s *Store) MarkHasCamera(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gardens[id]
	if !ok {
		return garden.ErrNotFound
	}
	g.HasCamera = true
	s.gardens[id] = g
	return nil
}

func (s *Store) SetAutoMode(ctx context.Context, id uint64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gardens[id]
	if !ok {
		return garden.ErrNotFound
	}
	g.AutoMode = enabled
	s.gardens[id] = g
	return nil
}

func (s *Store) SaveSample(ctx context.Context, sample *garden.TelemetrySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SampleErr != nil {
		return s.SampleErr
	}
	s.Samples = append(s.Samples, *sample)
	return nil
}

func (s *Store) SaveLog(ctx context.Context, l *garden.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Logs = append(s.Logs, *l)
	return nil
}

func (s *Store) SaveImage(ctx context.Context, i *garden.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Images = append(s.Images, *i)
	return nil
}

func (s *Store) SaveCommand(ctx context.Context, c *garden.CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CommandErr != nil {
		return s.CommandErr
	}
	s.Commands = append(s.Commands, *c)
	return nil
}

func (s *Store) Create(ctx context.Context, n *garden.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notifications = append(s.Notifications, *n)
	return nil
}

// LogsWithSource returns a copy of the stored logs from source.
func (s *Store) LogsWithSource(source garden.LogSource) []garden.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var logs []garden.LogEntry
	for _, l := range s.Logs {
		if l.Source == source {
			logs = append(logs, l)
		}
	}
	return logs
}

func (s *Store) ListCommands(ctx context.Context, c garden.CommandCriteria) ([]garden.CommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var commands []garden.CommandRecord
	for i := len(s.Commands) - 1; i >= 0; i-- {
		command := s.Commands[i]
		if c.GardenId != 0 && command.GardenId != c.GardenId {
			continue
		}
		if c.Channel != "" && command.Channel != c.Channel {
			continue
		}
		commands = append(commands, command)
		if c.Limit > 0 && len(commands) == c.Limit {
			break
		}
	}
	return commands, nil
}
