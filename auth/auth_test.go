package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keys map[string]ApiKey

func (k keys) ApiKey(ctx context.Context, token string) (*ApiKey, error) {
	if token == "broken" {
		return nil, errors.New("connection refused")
	}

	key, ok := k[token]
	if !ok {
		return nil, ErrUnknownKey
	}
	return &key, nil
}

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, *User) {
	t.Helper()

	log, _ := test.NewNullLogger()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a := NewMiddleware(keys{
		"valid":   {Token: "valid", UserId: 9, ExpirationTime: now.Add(time.Hour)},
		"expired": {Token: "expired", UserId: 9, ExpirationTime: now.Add(-time.Hour)},
	}, log)
	a.now = func() time.Time { return now }

	r := httptest.NewRequest(http.MethodPost, "/garden/1/command", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()

	var seen *User
	a.ServeHTTP(w, r, func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			seen = &u
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return w, seen
}

func TestValidKey(t *testing.T) {
	w, user := serve(t, "Bearer valid")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, user)
	assert.Equal(t, uint64(9), user.Id)
	assert.Equal(t, uint64(9), user.Actor().UserId)
}

func TestAnonymous(t *testing.T) {
	w, user := serve(t, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, user)
}

func TestRejectedKeys(t *testing.T) {
	for _, header := range []string{"Bearer expired", "Bearer unknown", "Basic dXNlcg==", "Bearer "} {
		w, user := serve(t, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Nil(t, user)
	}

	w, _ := serve(t, "Bearer broken")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler(w, r.WithContext(WithUser(r.Context(), User{Id: 1})))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
