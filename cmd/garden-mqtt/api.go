package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/auth"
	"github.com/DuTi2201/gardenR4-sub001/engine"
)

const (
	MaxCommandListLimit = 500
)

type commandLister interface {
	ListCommands(ctx context.Context, c garden.CommandCriteria) ([]garden.CommandRecord, error)
}

type Api struct {
	app       *app.App
	service   *engine.Service
	directory garden.Directory
	gardens   garden.GardenStore
	commands  commandLister
	decoder   *schema.Decoder
}

func NewApi(a *app.App, service *engine.Service, directory garden.Directory, gardens garden.GardenStore, commands commandLister) *Api {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Api{
		app:       a,
		service:   service,
		directory: directory,
		gardens:   gardens,
		commands:  commands,
		decoder:   decoder,
	}
}

func (api *Api) Routes() {
	api.app.Post("/garden/{garden}/command", api.withGarden(api.commandCreateHandler))
	api.app.Post("/garden/{garden}/camera/photo", api.withGarden(api.cameraPhotoHandler))
	api.app.Post("/garden/{garden}/camera/stream", api.withGarden(api.cameraStreamHandler))
	api.app.Get("/garden/{garden}/commands", api.withGarden(api.commandListHandler))
	api.app.Get("/device/{serial}/online", auth.RequireUser(api.deviceOnlineHandler))
}

type gardenContextHandler func(http.ResponseWriter, *http.Request, *garden.Garden, auth.User)

// withGarden resolves the garden in the path and checks it belongs to the
// requesting user.
func (api *Api) withGarden(handler gardenContextHandler) http.HandlerFunc {
	return auth.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())

		garden_id, err := garden.GetUintParameter(r, "garden")
		if err != nil {
			api.app.HttpBadRequest(w, err)
			return
		}

		g, err := api.gardens.Garden(r.Context(), garden_id)
		if err != nil {
			if errors.Is(err, garden.ErrNotFound) {
				api.app.HttpNotFound(w, fmt.Sprintf("Garden %d not found", garden_id))
			} else {
				api.app.HttpInternalError(w, err)
			}
			return
		}

		if g.UserId != user.Id {
			api.app.HttpNotFound(w, fmt.Sprintf("Garden %d not found", garden_id))
			return
		}

		handler(w, r, g, user)
	})
}

func (api *Api) dispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownChannel):
		api.app.HttpBadRequest(w, err)
	case errors.Is(err, engine.ErrUnknownDevice), errors.Is(err, engine.ErrNoCamera):
		api.app.HttpNotFound(w, err)
	case errors.Is(err, engine.ErrNotInitialized), errors.Is(err, engine.ErrClosed):
		api.app.HttpError(w, err, http.StatusServiceUnavailable)
	default:
		api.app.HttpInternalError(w, err)
	}
}

type commandRequest struct {
	Channel string `json:"channel"`
	Action  *bool  `json:"action"`
}

func (api *Api) commandCreateHandler(w http.ResponseWriter, r *http.Request, g *garden.Garden, user auth.User) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.app.HttpBadRequest(w, err)
		return
	}
	if req.Channel == "" || req.Action == nil {
		api.app.HttpBadRequest(w, "channel and action are required")
		return
	}

	record, err := api.service.DispatchToGarden(r.Context(), g.Id, req.Channel, *req.Action, user.Actor())
	if err != nil {
		api.dispatchError(w, err)
		return
	}

	api.app.JsonResponse(w, record)
}

func (api *Api) cameraPhotoHandler(w http.ResponseWriter, r *http.Request, g *garden.Garden, user auth.User) {
	record, err := api.service.TakePhoto(r.Context(), g.Id, user.Actor())
	if err != nil {
		api.dispatchError(w, err)
		return
	}

	api.app.JsonResponse(w, record)
}

type streamRequest struct {
	Enable *bool `json:"enable"`
}

func (api *Api) cameraStreamHandler(w http.ResponseWriter, r *http.Request, g *garden.Garden, user auth.User) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.app.HttpBadRequest(w, err)
		return
	}
	if req.Enable == nil {
		api.app.HttpBadRequest(w, "enable is required")
		return
	}

	record, err := api.service.SetStream(r.Context(), g.Id, *req.Enable, user.Actor())
	if err != nil {
		api.dispatchError(w, err)
		return
	}

	api.app.JsonResponse(w, record)
}

func (api *Api) commandListHandler(w http.ResponseWriter, r *http.Request, g *garden.Garden, user auth.User) {
	c := garden.CommandCriteria{}
	if err := api.decoder.Decode(&c, r.URL.Query()); err != nil {
		api.app.HttpBadRequest(w, err)
		return
	}

	c.GardenId = g.Id
	if c.Limit <= 0 || c.Limit > MaxCommandListLimit {
		c.Limit = MaxCommandListLimit
	}

	commands, err := api.commands.ListCommands(r.Context(), c)
	if err != nil {
		api.app.HttpInternalError(w, err)
		return
	}
	if commands == nil {
		commands = []garden.CommandRecord{}
	}

	api.app.JsonResponse(w, commands)
}

func (api *Api) deviceOnlineHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	serial := mux.Vars(r)["serial"]

	if err := api.checkDeviceOwner(r.Context(), serial, user); err != nil {
		if errors.Is(err, garden.ErrNotFound) {
			api.app.HttpNotFound(w, fmt.Sprintf("Device %s not found", serial))
		} else {
			api.app.HttpInternalError(w, err)
		}
		return
	}

	snapshot, err := api.service.Presence(r.Context(), serial)
	if err != nil {
		if errors.Is(err, garden.ErrNotFound) {
			api.app.HttpNotFound(w, fmt.Sprintf("Device %s not found", serial))
		} else {
			api.app.HttpInternalError(w, err)
		}
		return
	}

	api.app.JsonResponse(w, snapshot)
}

// checkDeviceOwner returns ErrNotFound for devices in gardens of other users.
func (api *Api) checkDeviceOwner(ctx context.Context, serial string, user auth.User) error {
	e, err := api.directory.Resolve(ctx, serial)
	if err != nil {
		return err
	}

	g, err := api.gardens.Garden(ctx, e.GardenId)
	if err != nil {
		return err
	}

	if g.UserId != user.Id {
		return garden.ErrNotFound
	}

	return nil
}
