package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Hoboken, NJ, USA", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"lat":"40.7440","lon":"-74.0324"}]`))
	}))
	defer server.Close()

	coords, err := NewNominatim(server.URL).Geocode(context.Background(), "Hoboken", "NJ")
	require.NoError(t, err)
	assert.InDelta(t, 40.7440, coords.Latitude, 0.0001)
	assert.InDelta(t, -74.0324, coords.Longitude, 0.0001)
}

func TestGeocodeNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := NewNominatim(server.URL).Geocode(context.Background(), "Nowhere", "ZZ")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocodeRetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"lat":"41.8781","lon":"-87.6298"}]`))
	}))
	defer server.Close()

	coords, err := NewNominatim(server.URL).Geocode(context.Background(), "Chicago", "IL")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.InDelta(t, 41.8781, coords.Latitude, 0.0001)
}

func TestGeocodeGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewNominatim(server.URL).Geocode(context.Background(), "Chicago", "IL")
	assert.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
}
