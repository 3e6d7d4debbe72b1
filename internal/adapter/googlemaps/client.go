// Package googlemaps resolves venue names to coordinates with the Google
// Maps Geocoding API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/datespot/aggregator/internal/domain"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNoResults reports a query the API answered but could not resolve.
var ErrNoResults = fmt.Errorf("no geocoding results")

// Client geocodes venue names. Queries are scoped to Toronto since the feed
// only carries Toronto venues.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a geocoding client. An empty baseURL selects the
// production API; requestDelay spaces consecutive calls.
func NewClient(apiKey, baseURL string, timeout, requestDelay time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(requestDelay), 1),
		logger:     logger,
	}
}

// GeocodeVenue resolves one venue name to coordinates. The API answering
// with a non-OK status or an empty result set yields ErrNoResults.
func (c *Client) GeocodeVenue(ctx context.Context, venueName string) (domain.Coordinates, error) {
	if venueName == "" {
		return domain.Coordinates{}, fmt.Errorf("venue name is empty")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocoding rate limit: %w", err)
	}

	params := url.Values{
		"address": {venueName + ", Toronto Canada"},
		"key":     {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinates{}, fmt.Errorf("geocoding API error: status %d: %s", resp.StatusCode, body)
	}

	var geo response
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode response: %w", err)
	}

	if geo.Status != "OK" || len(geo.Results) == 0 {
		if geo.ErrorMessage != "" {
			c.logger.Warn("geocoding rejected query",
				"venue", venueName, "status", geo.Status, "message", geo.ErrorMessage)
		}
		return domain.Coordinates{}, fmt.Errorf("%w: status %s", ErrNoResults, geo.Status)
	}

	loc := geo.Results[0].Geometry.Location
	return domain.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Google Maps API response types.

type response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Results      []result `json:"results"`
}

type result struct {
	Geometry struct {
		Location domain.Coordinates `json:"location"`
	} `json:"geometry"`
}
