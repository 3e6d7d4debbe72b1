package cache

import (
	"context"
	"time"

	"github.com/datespot/aggregator/internal/domain"
)

// GeocodeRow is one persisted geocoding cache entry.
type GeocodeRow struct {
	Coords    domain.Coordinates
	ExpiresAt time.Time
}

// CategoryRow is one persisted categorization cache entry.
type CategoryRow struct {
	Category  string
	ExpiresAt time.Time
}

// Stats reports live (unexpired) row counts per domain.
type Stats struct {
	Geocoding      int
	Categorization int
}

// Total returns the combined live row count.
func (s Stats) Total() int { return s.Geocoding + s.Categorization }

// Store is the persistent backing for both cache domains. Upserts treat the
// key as unique: a second write for the same key overwrites the row. Any
// failure is returned as a plain error; the façade interprets every store
// error as "store unavailable" and degrades to a cache miss.
type Store interface {
	UpsertGeocode(ctx context.Context, venueName string, coords domain.Coordinates, expiresAt time.Time) error
	UpsertCategory(ctx context.Context, eventID, category string, expiresAt time.Time) error

	// SelectGeocodes and SelectCategories return only rows with
	// expires_at >= now.
	SelectGeocodes(ctx context.Context, now time.Time) (map[string]GeocodeRow, error)
	SelectCategories(ctx context.Context, now time.Time) (map[string]CategoryRow, error)

	// DeleteExpired reclaims dead rows in both domains and returns how many
	// were removed. Not required for correctness; expiry is lazy.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	CountUnexpired(ctx context.Context, now time.Time) (Stats, error)
}
