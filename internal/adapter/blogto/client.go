// Package blogto fetches Toronto event listings from the BlogTO API.
package blogto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/datespot/aggregator/internal/domain"
)

const defaultBaseURL = "https://www.blogto.com/api/v2/events/"

// Client implements the event feed against the BlogTO listings API. All
// requests share a rate limiter so bursts of dates never hammer the feed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxRetry   time.Duration
	logger     *slog.Logger
}

// NewClient creates a feed client. An empty baseURL selects the production
// feed; requestDelay is the minimum spacing between consecutive requests.
func NewClient(baseURL string, timeout, requestDelay time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(requestDelay), 1),
		maxRetry:   30 * time.Second,
		logger:     logger,
	}
}

type feedResponse struct {
	Results []domain.RawEvent `json:"results"`
}

// FetchEventsForDate fetches every ongoing listing for one date. Transient
// failures (network errors, 5xx) are retried with exponential backoff;
// client errors are not.
func (c *Client) FetchEventsForDate(ctx context.Context, date string) ([]domain.RawEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limit: %w", err)
	}

	params := url.Values{
		"bundle_type": {"medium"},
		"date":        {date},
		"limit":       {"9999"},
		"offset":      {"0"},
		"status":      {"ongoing"},
	}
	fullURL := c.baseURL + "?" + params.Encode()

	var events []domain.RawEvent
	operation := func() error {
		var err error
		events, err = c.doRequest(ctx, fullURL)
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = c.maxRetry
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("fetch events for %s: %w", date, err)
	}

	c.logger.Info("fetched feed events", "date", date, "count", len(events))
	return events, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.RawEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode feed response: %w", err))
	}
	return feed.Results, nil
}

// FetchAllEvents fetches listings for days consecutive dates starting
// today. A date whose fetch fails contributes an empty slice; the run
// continues with whatever dates succeeded.
func (c *Client) FetchAllEvents(ctx context.Context, days int) map[string][]domain.RawEvent {
	dates := domain.Dates(days)
	resultsByDate := make(map[string][]domain.RawEvent, len(dates))

	for _, date := range dates {
		events, err := c.FetchEventsForDate(ctx, date)
		if err != nil {
			c.logger.Error("feed fetch failed for date, continuing", "date", date, "error", err)
			resultsByDate[date] = []domain.RawEvent{}
			continue
		}
		resultsByDate[date] = events
	}
	return resultsByDate
}
