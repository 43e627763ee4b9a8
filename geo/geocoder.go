// Package geo wraps the external geocoding collaborator behind a narrow
// interface. The backing service is any Nominatim-compatible endpoint.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNoResult means the collaborator answered but found no coordinates for
// the location.
var ErrNoResult = errors.New("could not find coordinates for location")

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Geocoder interface {
	Geocode(ctx context.Context, city, state string) (Coordinates, error)
}

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

type nominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
}

func NewNominatim(baseURL string) Geocoder {
	return &nominatimGeocoder{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Geocode resolves "city, state, USA" to a coordinate pair. Transient
// failures (transport errors, 5xx) are retried a bounded number of times;
// an empty result set is final and not retried.
func (g *nominatimGeocoder) Geocode(ctx context.Context, city, state string) (Coordinates, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("%s, %s, USA", city, state))
	query.Set("format", "json")
	query.Set("limit", "1")
	endpoint := g.baseURL + "/search?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Coordinates{}, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		coords, retryable, err := g.lookup(ctx, endpoint)
		if err == nil {
			return coords, nil
		}
		if !retryable {
			return Coordinates{}, err
		}
		lastErr = err
	}
	return Coordinates{}, fmt.Errorf("geocoding failed after %d attempts: %w", maxAttempts, lastErr)
}

func (g *nominatimGeocoder) lookup(ctx context.Context, endpoint string) (Coordinates, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinates{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Coordinates{}, true, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, false, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Coordinates{}, false, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return Coordinates{}, false, ErrNoResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("invalid latitude in geocoder response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("invalid longitude in geocoder response: %w", err)
	}
	return Coordinates{Latitude: lat, Longitude: lon}, false, nil
}
