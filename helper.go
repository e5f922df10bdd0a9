package garden

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func GetUintParameter(r *http.Request, id string) (uint64, error) {
	parameter, ok := mux.Vars(r)[id]
	if !ok || parameter == "" {
		return 0, fmt.Errorf("Missing parameter %s", id)
	}

	value, err := strconv.ParseUint(parameter, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("Bad parameter %s: %w", id, err)
	}

	return value, nil
}
