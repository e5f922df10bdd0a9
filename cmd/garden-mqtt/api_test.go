package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/auth"
	"github.com/DuTi2201/gardenR4-sub001/engine"
	"github.com/DuTi2201/gardenR4-sub001/gardentest"
	"github.com/DuTi2201/gardenR4-sub001/presence"
)

type apiFixture struct {
	app     *app.App
	store   *gardentest.Store
	broker  *gardentest.Broker
	service *engine.Service
}

func newApiFixture(t *testing.T) *apiFixture {
	t.Helper()

	a, err := app.NewWithConfig("test", &app.Config{LogLevel: "debug"})
	require.NoError(t, err)

	store := gardentest.NewStore()
	store.AddGarden(garden.Garden{Id: 1, UserId: 9, Name: "Balcony"})
	store.AddGarden(garden.Garden{Id: 2, UserId: 4, Name: "Kitchen"})
	store.AddGarden(garden.Garden{Id: 3, UserId: 9, Name: "Empty"})
	store.AddEndpoint(garden.Endpoint{Serial: "C1", Kind: garden.Controller, GardenId: 1})
	store.AddEndpoint(garden.Endpoint{Serial: "K1", Kind: garden.Camera, GardenId: 1})
	store.AddEndpoint(garden.Endpoint{Serial: "C2", Kind: garden.Controller, GardenId: 2})

	log, _ := test.NewNullLogger()

	service := engine.NewService(engine.Stores{
		Directory:     store,
		Presence:      store,
		Gardens:       store,
		Records:       store,
		Notifications: store,
	}, log, engine.Config{
		Presence: presence.Config{Clock: gardentest.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))},
	})

	f := &apiFixture{
		app:     a,
		store:   store,
		broker:  gardentest.NewBroker(),
		service: service,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, service.Initialize(ctx, f.broker, &gardentest.Live{}))
	t.Cleanup(service.Close)

	NewApi(a, service, store, store, store).Routes()

	return f
}

func (f *apiFixture) do(method string, path string, body string, user *auth.User) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != nil {
		r = r.WithContext(auth.WithUser(r.Context(), *user))
	}

	w := httptest.NewRecorder()
	f.app.Router.ServeHTTP(w, r)
	return w
}

var owner = &auth.User{Id: 9}

func TestCommandCreate(t *testing.T) {
	f := newApiFixture(t)

	w := f.do("POST", "/garden/1/command", `{"channel":"Fan","action":true}`, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var record garden.CommandRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
	assert.Equal(t, "C1", record.Serial)
	assert.Equal(t, "fan", record.Channel)
	assert.Equal(t, garden.OutcomeAttempted, record.Outcome)
	require.NotNil(t, record.ActorId)
	assert.Equal(t, uint64(9), *record.ActorId)

	f.service.Close()
	publications := f.broker.Publications()
	require.Len(t, publications, 1)
	assert.Equal(t, "garden/C1/command", publications[0].Topic)
}

func TestCommandCreateRejected(t *testing.T) {
	f := newApiFixture(t)

	cases := []struct {
		name   string
		path   string
		body   string
		user   *auth.User
		status int
	}{
		{"anonymous", "/garden/1/command", `{"channel":"fan","action":true}`, nil, http.StatusUnauthorized},
		{"malformed body", "/garden/1/command", `{`, owner, http.StatusBadRequest},
		{"missing action", "/garden/1/command", `{"channel":"fan"}`, owner, http.StatusBadRequest},
		{"unknown channel", "/garden/1/command", `{"channel":"sprinkler","action":true}`, owner, http.StatusBadRequest},
		{"foreign garden", "/garden/2/command", `{"channel":"fan","action":true}`, owner, http.StatusNotFound},
		{"unknown garden", "/garden/42/command", `{"channel":"fan","action":true}`, owner, http.StatusNotFound},
		{"no controller", "/garden/3/command", `{"channel":"fan","action":true}`, owner, http.StatusNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := f.do("POST", c.path, c.body, c.user)
			assert.Equal(t, c.status, w.Code, w.Body.String())
		})
	}

	assert.Empty(t, f.broker.Publications())
	assert.Empty(t, f.store.Commands)
}

func TestCameraRoutes(t *testing.T) {
	f := newApiFixture(t)

	w := f.do("POST", "/garden/1/camera/photo", "", owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do("POST", "/garden/1/camera/stream", `{"enable":false}`, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do("POST", "/garden/1/camera/stream", `{}`, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("POST", "/garden/3/camera/photo", "", owner)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Len(t, f.store.Commands, 2)
	assert.Equal(t, engine.ChannelCamera, f.store.Commands[0].Channel)
	assert.Equal(t, engine.ActionTakePhoto, f.store.Commands[0].Action)
}

func TestCommandList(t *testing.T) {
	f := newApiFixture(t)

	for _, body := range []string{
		`{"channel":"fan","action":true}`,
		`{"channel":"pump","action":true}`,
		`{"channel":"fan","action":false}`,
	} {
		w := f.do("POST", "/garden/1/command", body, owner)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := f.do("GET", "/garden/1/commands?channel=fan&limit=1", "", owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var commands []garden.CommandRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&commands))
	require.Len(t, commands, 1)
	assert.Equal(t, "fan", commands[0].Channel)
	assert.Equal(t, "off", commands[0].Action)

	w = f.do("GET", "/garden/2/commands", "", owner)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("GET", "/garden/2/commands", "", &auth.User{Id: 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestDeviceOnline(t *testing.T) {
	f := newApiFixture(t)

	w := f.do("GET", "/device/C1/online", "", owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var snapshot engine.PresenceSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snapshot))
	assert.Equal(t, "C1", snapshot.Serial)
	assert.False(t, snapshot.Online)

	w = f.do("GET", "/device/X9/online", "", owner)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("GET", "/device/C1/online", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeviceOnlineForeignGarden(t *testing.T) {
	f := newApiFixture(t)

	// C2 belongs to garden 2 of user 4
	w := f.do("GET", "/device/C2/online", "", owner)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("GET", "/device/C2/online", "", &auth.User{Id: 4})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

type queue struct {
	commands []interface{}
	err      error
}

func (q *queue) Create(cmd interface{}) error {
	q.commands = append(q.commands, cmd)
	return q.err
}

type recordingDispatcher struct {
	serial  string
	channel string
	action  bool
	actor   *garden.Actor
	err     error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, serial string, channel string, action bool, actor *garden.Actor) (*garden.CommandRecord, error) {
	d.serial, d.channel, d.action, d.actor = serial, channel, action, actor
	if d.err != nil {
		return nil, d.err
	}
	return &garden.CommandRecord{Serial: serial, Channel: channel}, nil
}

func TestScheduledCommandQueued(t *testing.T) {
	q := &queue{}
	cmd := garden.ScheduledCommand{Serial: "C1", Channel: "pump", Action: true}

	require.NoError(t, scheduledCommandReceived(q)(cmd))
	assert.Equal(t, []interface{}{cmd}, q.commands)

	q.err = app.ErrCommandQueueFull
	assert.ErrorIs(t, scheduledCommandReceived(q)(cmd), app.ErrCommandQueueFull)
}

func TestDispatchScheduled(t *testing.T) {
	d := &recordingDispatcher{}

	err := dispatchScheduled(d)(garden.ScheduledCommand{Serial: "C2", Channel: "lamp", Action: false})
	require.NoError(t, err)
	assert.Equal(t, "C2", d.serial)
	assert.Equal(t, "lamp", d.channel)
	assert.False(t, d.action)
	assert.Nil(t, d.actor)

	d.err = errors.New("boom")
	assert.Error(t, dispatchScheduled(d)(garden.ScheduledCommand{Serial: "C2", Channel: "lamp"}))

	assert.Error(t, dispatchScheduled(d)("not a command"))
}
