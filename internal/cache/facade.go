// Package cache implements the two-tier response cache: an in-process
// mirror in front of a persistent store, with per-domain TTLs.
//
// The mirror is a cache of the store, never a source of truth. It is
// hydrated once per process from the store's unexpired rows and updated
// only after a store write succeeds. Store unavailability degrades to
// "nothing is cached" rather than failing the pipeline.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/datespot/aggregator/internal/domain"
	"github.com/datespot/aggregator/internal/observability"
)

// Metric label values for the two cache domains.
const (
	geocodingDomain      = "geocoding"
	categorizationDomain = "categorization"
)

// Facade mediates between callers and the two-tier cache. Construct one per
// process and share it; all methods are safe for concurrent use.
type Facade struct {
	store             Store
	clock             clockwork.Clock
	geocodingTTL      time.Duration
	categorizationTTL time.Duration
	logger            *slog.Logger
	metrics           *observability.Metrics

	hydrateOnce sync.Once

	mu         sync.RWMutex
	geocodes   map[string]GeocodeRow
	categories map[string]CategoryRow
}

// New creates a Facade over the given store. The mirror starts empty and is
// populated lazily on first access.
func New(store Store, geocodingTTL, categorizationTTL time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Facade {
	return &Facade{
		store:             store,
		clock:             clock,
		geocodingTTL:      geocodingTTL,
		categorizationTTL: categorizationTTL,
		logger:            logger,
		metrics:           metrics,
		geocodes:          make(map[string]GeocodeRow),
		categories:        make(map[string]CategoryRow),
	}
}

// NormalizeVenue canonicalizes a venue name so differently-cased writers
// collide to the same cache row.
func NormalizeVenue(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// hydrate bulk-loads both domains' unexpired rows into the mirror, once per
// process. A failed bulk read still marks hydration complete so the failing
// path is not retried on every lookup; the cache is then fail-open (empty).
func (f *Facade) hydrate(ctx context.Context) {
	f.hydrateOnce.Do(func() {
		now := f.clock.Now()

		geocodes, errGeo := f.store.SelectGeocodes(ctx, now)
		categories, errCat := f.store.SelectCategories(ctx, now)
		if errGeo != nil || errCat != nil {
			f.logger.Warn("cache hydration failed, continuing with empty cache",
				"geocoding_error", errGeo,
				"categorization_error", errCat,
			)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		for k, row := range geocodes {
			f.geocodes[k] = row
		}
		for k, row := range categories {
			f.categories[k] = row
		}
		f.logger.Info("cache hydrated",
			"geocoding_entries", len(geocodes),
			"categorization_entries", len(categories),
		)
	})
}

// GetCoordinates returns the cached coordinates for a venue, or false on a
// miss. Expired entries count as misses and are dropped from the mirror.
func (f *Facade) GetCoordinates(ctx context.Context, venueName string) (domain.Coordinates, bool) {
	f.hydrate(ctx)

	key := NormalizeVenue(venueName)
	if key == "" {
		f.metrics.CacheLookups.WithLabelValues(geocodingDomain, "miss").Inc()
		return domain.Coordinates{}, false
	}

	f.mu.RLock()
	row, ok := f.geocodes[key]
	f.mu.RUnlock()

	if ok && row.ExpiresAt.After(f.clock.Now()) {
		f.metrics.CacheLookups.WithLabelValues(geocodingDomain, "hit").Inc()
		return row.Coords, true
	}
	if ok {
		f.mu.Lock()
		delete(f.geocodes, key)
		f.mu.Unlock()
	}
	f.metrics.CacheLookups.WithLabelValues(geocodingDomain, "miss").Inc()
	return domain.Coordinates{}, false
}

// SetCoordinates writes coordinates through to the store and, on success,
// into the mirror. Returns false when the value could not be persisted; the
// caller loses nothing but a future cache hit.
func (f *Facade) SetCoordinates(ctx context.Context, venueName string, coords domain.Coordinates) bool {
	f.hydrate(ctx)

	key := NormalizeVenue(venueName)
	if key == "" {
		return false
	}

	expiresAt := f.clock.Now().Add(f.geocodingTTL)
	if err := f.store.UpsertGeocode(ctx, key, coords, expiresAt); err != nil {
		f.logger.Warn("geocoding cache store failed", "venue", venueName, "error", err)
		f.metrics.CacheStores.WithLabelValues(geocodingDomain, "error").Inc()
		return false
	}

	f.mu.Lock()
	f.geocodes[key] = GeocodeRow{Coords: coords, ExpiresAt: expiresAt}
	f.mu.Unlock()

	f.metrics.CacheStores.WithLabelValues(geocodingDomain, "success").Inc()
	return true
}

// GetCategory returns the cached category for an event id, or false on a miss.
func (f *Facade) GetCategory(ctx context.Context, eventID string) (string, bool) {
	f.hydrate(ctx)

	if eventID == "" {
		f.metrics.CacheLookups.WithLabelValues(categorizationDomain, "miss").Inc()
		return "", false
	}

	f.mu.RLock()
	row, ok := f.categories[eventID]
	f.mu.RUnlock()

	if ok && row.ExpiresAt.After(f.clock.Now()) {
		f.metrics.CacheLookups.WithLabelValues(categorizationDomain, "hit").Inc()
		return row.Category, true
	}
	if ok {
		f.mu.Lock()
		delete(f.categories, eventID)
		f.mu.Unlock()
	}
	f.metrics.CacheLookups.WithLabelValues(categorizationDomain, "miss").Inc()
	return "", false
}

// SetCategory writes a category through to the store and, on success, into
// the mirror.
func (f *Facade) SetCategory(ctx context.Context, eventID, category string) bool {
	f.hydrate(ctx)

	if eventID == "" || category == "" {
		return false
	}

	expiresAt := f.clock.Now().Add(f.categorizationTTL)
	if err := f.store.UpsertCategory(ctx, eventID, category, expiresAt); err != nil {
		f.logger.Warn("categorization cache store failed", "event_id", eventID, "error", err)
		f.metrics.CacheStores.WithLabelValues(categorizationDomain, "error").Inc()
		return false
	}

	f.mu.Lock()
	f.categories[eventID] = CategoryRow{Category: category, ExpiresAt: expiresAt}
	f.mu.Unlock()

	f.metrics.CacheStores.WithLabelValues(categorizationDomain, "success").Inc()
	return true
}

// PurgeExpired reclaims dead rows from the store and drops expired mirror
// entries. Purely housekeeping; lazy expiry already hides dead rows.
func (f *Facade) PurgeExpired(ctx context.Context) (int64, error) {
	now := f.clock.Now()

	f.mu.Lock()
	for k, row := range f.geocodes {
		if !row.ExpiresAt.After(now) {
			delete(f.geocodes, k)
		}
	}
	for k, row := range f.categories {
		if !row.ExpiresAt.After(now) {
			delete(f.categories, k)
		}
	}
	f.mu.Unlock()

	return f.store.DeleteExpired(ctx, now)
}

// Stats returns live row counts from the store for diagnostics.
func (f *Facade) Stats(ctx context.Context) (Stats, error) {
	return f.store.CountUnexpired(ctx, f.clock.Now())
}
