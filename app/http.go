package app

import (
	"encoding/json"
	"net/http"
)

func (app *App) JsonResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		app.HttpInternalError(w, err)
		return err
	}

	return nil
}

func (app *App) HttpInternalError(w http.ResponseWriter, err interface{}) {
	app.HttpError(w, err, http.StatusInternalServerError)
}

func (app *App) HttpBadRequest(w http.ResponseWriter, err interface{}) {
	app.HttpError(w, err, http.StatusBadRequest)
}

func (app *App) HttpUnauthorized(w http.ResponseWriter, err interface{}) {
	app.HttpError(w, err, http.StatusUnauthorized)
}

func (app *App) HttpNotFound(w http.ResponseWriter, err interface{}) {
	app.HttpError(w, err, http.StatusNotFound)
}

func (app *App) HttpError(w http.ResponseWriter, err interface{}, status int) {
	var error_string string

	switch v := err.(type) {
	case error:
		error_string = v.Error()
	case string:
		error_string = v
	case *string:
		error_string = *v
	default:
		error_string = "Unknown error"
	}

	http.Error(w, error_string, status)
}
