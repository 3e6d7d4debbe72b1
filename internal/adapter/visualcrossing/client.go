// Package visualcrossing fetches per-date Toronto weather summaries from
// the Visual Crossing timeline API.
package visualcrossing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/datespot/aggregator/internal/domain"
)

const (
	defaultBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"
	location       = "Toronto,ON,Canada"
)

// Client fetches daily weather summaries.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a weather client. An empty baseURL selects the
// production API.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// FetchWeatherForDate returns the weather summary for one date. The report
// is never nil: failures come back with the Err field set so the published
// schema still carries an entry for the date.
func (c *Client) FetchWeatherForDate(ctx context.Context, date string) *domain.WeatherReport {
	report, err := c.fetch(ctx, date)
	if err != nil {
		c.logger.Error("weather fetch failed", "date", date, "error", err)
		return &domain.WeatherReport{Err: fmt.Sprintf("Failed to fetch weather data: %v", err)}
	}
	return report
}

func (c *Client) fetch(ctx context.Context, date string) (*domain.WeatherReport, error) {
	params := url.Values{
		"key":       {c.apiKey},
		"elements":  {"tempmax,tempmin,conditions,sunset"},
		"include":   {"days"},
		"unitGroup": {"metric"},
	}
	fullURL := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, url.PathEscape(location), date, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body)
	}

	var timeline response
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(timeline.Days) == 0 {
		return nil, fmt.Errorf("no weather data for %s", date)
	}

	day := timeline.Days[0]
	return &domain.WeatherReport{
		TempMax:    day.TempMax,
		TempMin:    day.TempMin,
		Conditions: day.Conditions,
		Sunset:     domain.SunsetToNumber(day.Sunset),
	}, nil
}

// Visual Crossing timeline response types.

type response struct {
	Days []day `json:"days"`
}

type day struct {
	TempMax    *float64 `json:"tempmax"`
	TempMin    *float64 `json:"tempmin"`
	Conditions string   `json:"conditions"`
	Sunset     string   `json:"sunset"`
}
