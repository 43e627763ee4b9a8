package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsfinder/sports-finder/services"
)

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	newRequest := func(body string) (*httptest.ResponseRecorder, *http.Request) {
		return httptest.NewRecorder(),
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}

	t.Run("valid body", func(t *testing.T) {
		w, r := newRequest(`{"name": "Hawks"}`)
		var dst payload
		require.NoError(t, readJSON(w, r, &dst))
		assert.Equal(t, "Hawks", dst.Name)
	})

	t.Run("empty body", func(t *testing.T) {
		w, r := newRequest("")
		var dst payload
		assert.EqualError(t, readJSON(w, r, &dst), "body must not be empty")
	})

	t.Run("unknown field", func(t *testing.T) {
		w, r := newRequest(`{"name": "Hawks", "mascot": "bird"}`)
		var dst payload
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown key")
	})

	t.Run("trailing value", func(t *testing.T) {
		w, r := newRequest(`{"name": "Hawks"}{"name": "Owls"}`)
		var dst payload
		assert.EqualError(t, readJSON(w, r, &dst), "body must only contain a single JSON value")
	})

	t.Run("wrong type", func(t *testing.T) {
		w, r := newRequest(`{"name": 42}`)
		var dst payload
		err := readJSON(w, r, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `field "name"`)
	})
}

func TestGetIDFromURL(t *testing.T) {
	newRequest := func(param, value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(param, value)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := getIDFromURL(newRequest("teamID", "42"), "teamID")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = getIDFromURL(newRequest("teamID", "abc"), "teamID")
	assert.Error(t, err)

	_, err = getIDFromURL(newRequest("teamID", "0"), "teamID")
	assert.Error(t, err)

	_, err = getIDFromURL(httptest.NewRequest(http.MethodGet, "/", nil).
		WithContext(context.WithValue(context.Background(), chi.RouteCtxKey, chi.NewRouteContext())), "teamID")
	assert.Error(t, err)
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"team not found", services.ErrTeamNotFound, http.StatusNotFound},
		{"game not found", services.ErrGameNotFound, http.StatusNotFound},
		{"username taken", services.ErrUsernameConflict, http.StatusConflict},
		{"second team", services.ErrOwnerHasTeam, http.StatusConflict},
		{"duplicate join request", services.ErrJoinRequestConflict, http.StatusConflict},
		{"team at capacity", services.ErrTeamFull, http.StatusConflict},
		{"validation failure", services.ErrValidationFailed, http.StatusBadRequest},
		{"owner leaving own team", services.ErrOwnerCannotLeave, http.StatusBadRequest},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"not the owner", services.ErrForbiddenOperation, http.StatusForbidden},
		{"unexpected failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mapServiceErrorToHTTP(rec, req, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}
