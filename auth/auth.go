package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const bearerPrefix = "Bearer "

// Auth is a negroni middleware resolving bearer api keys to a user. Requests
// without credentials pass through anonymously.
type Auth struct {
	keys KeyStore
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewMiddleware(keys KeyStore, log logrus.FieldLogger) *Auth {
	return &Auth{
		keys: keys,
		log:  log.WithField("component", "auth"),
		now:  time.Now,
	}
}

func (a *Auth) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	header := r.Header.Get("Authorization")
	if header == "" {
		next(w, r)
		return
	}

	if !strings.HasPrefix(header, bearerPrefix) || len(header) == len(bearerPrefix) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	bearer := header[len(bearerPrefix):]

	user, err := a.CheckAccessKey(r, bearer)
	if err != nil {
		if errors.Is(err, ErrUnknownKey) || errors.Is(err, ErrKeyExpired) {
			a.log.WithField("error", err).Warn("Rejected api key")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		} else {
			a.log.WithField("error", err).Error("Error checking api key")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	next(w, r.WithContext(WithUser(r.Context(), user)))
}

func (a *Auth) CheckAccessKey(r *http.Request, bearer string) (User, error) {
	key, err := a.keys.ApiKey(r.Context(), bearer)
	if err != nil {
		return User{}, err
	}

	if a.now().After(key.ExpirationTime) {
		return User{}, ErrKeyExpired
	}

	return User{Id: key.UserId}, nil
}

// RequireUser rejects anonymous requests.
func RequireUser(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}
}
