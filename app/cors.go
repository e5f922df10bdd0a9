package app

import (
	"net/http"
	"strings"

	"github.com/urfave/negroni"
)

var (
	CorsAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	CorsAllowedHeaders = []string{"Accept", "Accept-Language", "Content-Type", "Authorization"}
)

// Cors answers preflight requests itself and decorates everything else.
func Cors(origin string) negroni.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	methods := strings.Join(CorsAllowedMethods, ", ")
	headers := strings.Join(CorsAllowedHeaders, ", ")

	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", headers)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
