// Package categorize decides, for a batch of events needing classification,
// which are already cached, which must go to the external classifier, how to
// split oversized requests, and how to merge partial results back into an
// output that covers every input event exactly once.
package categorize

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datespot/aggregator/internal/cache"
	"github.com/datespot/aggregator/internal/domain"
	"github.com/datespot/aggregator/internal/observability"
)

// ErrMalformedResponse marks a classifier reply that could not be parsed
// into the expected {date: {id: label}} shape. Wrapped by classifier
// implementations; the orchestrator only uses it for outcome accounting.
var ErrMalformedResponse = errors.New("malformed classifier response")

// Classifier is the external AI model boundary. The payload maps each date
// to {event id: summary text}; the reply must use the same shape with
// category labels as values. Implementations return ErrMalformedResponse
// (wrapped) when the reply cannot be parsed.
type Classifier interface {
	Categorize(ctx context.Context, payload map[string]map[string]string) (map[string]map[string]string, error)
}

// Categorizer orchestrates cache-aware batch classification. It owns no
// persistent state; per-call partitioning structures are transient.
type Categorizer struct {
	facade         *cache.Facade
	classifier     Classifier
	batchThreshold int
	callTimeout    time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// New creates a Categorizer. batchThreshold bounds how many pending events
// may share one classifier call before the batch is split per date.
func New(facade *cache.Facade, classifier Classifier, batchThreshold int, callTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Categorizer {
	return &Categorizer{
		facade:         facade,
		classifier:     classifier,
		batchThreshold: batchThreshold,
		callTimeout:    callTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// CategorizeEvents returns a category per event, grouped exactly like the
// input: the output has the same date keys and, per date, the same event
// ids. Events that got neither a cache hit nor a fresh classification map
// to the empty string. Classifier failures never propagate; they only
// reduce coverage.
func (c *Categorizer) CategorizeEvents(ctx context.Context, resultsByDate map[string][]domain.Event) map[string]map[string]string {
	known := make(map[string]map[string]string, len(resultsByDate))
	pending := make(map[string][]domain.Event)
	totalEvents := 0

	for date, events := range resultsByDate {
		known[date] = make(map[string]string, len(events))
		totalEvents += len(events)
		for _, ev := range events {
			if category, ok := c.facade.GetCategory(ctx, ev.ID); ok {
				known[date][ev.ID] = category
			} else {
				pending[date] = append(pending[date], ev)
			}
		}
	}

	totalPending := 0
	for _, events := range pending {
		totalPending += len(events)
	}

	c.logger.Info("categorization partitioned",
		"total", totalEvents,
		"cached", totalEvents-totalPending,
		"pending", totalPending,
	)

	if totalPending == 0 {
		return known
	}

	var fresh map[string]map[string]string
	if totalPending > c.batchThreshold {
		fresh = c.classifyPerDate(ctx, pending)
	} else {
		fresh = c.classifyUnit(ctx, buildPayload(pending))
	}

	return c.merge(ctx, resultsByDate, known, fresh)
}

// classifyPerDate issues one classifier call per date, concurrently, so no
// single call's payload grows with the whole window. Calls are failure
// isolated: one date's failure leaves the others' results intact.
func (c *Categorizer) classifyPerDate(ctx context.Context, pending map[string][]domain.Event) map[string]map[string]string {
	c.logger.Info("pending batch exceeds threshold, splitting per date",
		"threshold", c.batchThreshold, "dates", len(pending))

	var (
		mu    sync.Mutex
		fresh = make(map[string]map[string]string, len(pending))
	)

	g, gctx := errgroup.WithContext(ctx)
	for date, events := range pending {
		payload := buildPayload(map[string][]domain.Event{date: events})
		g.Go(func() error {
			result := c.classifyUnit(gctx, payload)
			mu.Lock()
			for d, ids := range result {
				fresh[d] = ids
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // unit failures are absorbed, never returned

	return fresh
}

// classifyUnit performs one external call with its own timeout and
// reconciles the reply against the request: only requested (date, id) pairs
// are kept, everything else is ignored. Returns only what the classifier
// actually covered.
func (c *Categorizer) classifyUnit(ctx context.Context, payload map[string]map[string]string) map[string]map[string]string {
	requested := 0
	for _, ids := range payload {
		requested += len(ids)
	}
	if requested == 0 {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	reply, err := c.classifier.Categorize(callCtx, payload)
	c.metrics.ClassifierDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrMalformedResponse) {
			outcome = "malformed"
		}
		c.metrics.ClassifierRequests.WithLabelValues(outcome).Inc()
		c.logger.Error("classifier call failed, events stay uncategorized",
			"requested", requested, "error", err)
		return nil
	}
	c.metrics.ClassifierRequests.WithLabelValues("success").Inc()

	covered := 0
	out := make(map[string]map[string]string, len(payload))
	for date, ids := range payload {
		sub, ok := reply[date]
		if !ok {
			continue
		}
		for id := range ids {
			label, ok := sub[id]
			if !ok || label == "" {
				continue
			}
			if out[date] == nil {
				out[date] = make(map[string]string, len(ids))
			}
			out[date][id] = label
			covered++
		}
	}

	if covered < requested {
		c.logger.Warn("classifier response incomplete",
			"returned", covered, "requested", requested)
	}
	return out
}

// merge combines cache hits and fresh results into the final mapping and
// writes fresh classifications through the cache. Every input (date, id)
// pair appears in the output; uncovered events get an empty category.
func (c *Categorizer) merge(ctx context.Context, resultsByDate map[string][]domain.Event, known, fresh map[string]map[string]string) map[string]map[string]string {
	result := make(map[string]map[string]string, len(resultsByDate))
	for date, events := range resultsByDate {
		out := make(map[string]string, len(events))
		for _, ev := range events {
			if category, ok := known[date][ev.ID]; ok {
				out[ev.ID] = category
				continue
			}
			if category, ok := fresh[date][ev.ID]; ok {
				out[ev.ID] = category
				if !c.facade.SetCategory(ctx, ev.ID, category) {
					c.logger.Warn("failed to cache fresh category", "event_id", ev.ID)
				}
				continue
			}
			out[ev.ID] = ""
			c.metrics.Uncategorized.Inc()
		}
		result[date] = out
	}
	return result
}

// buildPayload projects pending events into the reduced classifier payload:
// {date: {event id: "Title: sanitized description"}}.
func buildPayload(pending map[string][]domain.Event) map[string]map[string]string {
	payload := make(map[string]map[string]string, len(pending))
	for date, events := range pending {
		ids := make(map[string]string, len(events))
		for _, ev := range events {
			ids[ev.ID] = Summarize(ev)
		}
		payload[date] = ids
	}
	return payload
}
