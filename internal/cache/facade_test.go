package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datespot/aggregator/internal/cache"
	"github.com/datespot/aggregator/internal/domain"
	"github.com/datespot/aggregator/internal/observability"
)

// --- fake store ---

type fakeStore struct {
	mu          sync.Mutex
	geocodes    map[string]cache.GeocodeRow
	categories  map[string]cache.CategoryRow
	selectCalls int
	upsertErr   error
	selectErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		geocodes:   make(map[string]cache.GeocodeRow),
		categories: make(map[string]cache.CategoryRow),
	}
}

func (s *fakeStore) UpsertGeocode(_ context.Context, venueName string, coords domain.Coordinates, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.geocodes[venueName] = cache.GeocodeRow{Coords: coords, ExpiresAt: expiresAt}
	return nil
}

func (s *fakeStore) UpsertCategory(_ context.Context, eventID, category string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.categories[eventID] = cache.CategoryRow{Category: category, ExpiresAt: expiresAt}
	return nil
}

func (s *fakeStore) SelectGeocodes(_ context.Context, now time.Time) (map[string]cache.GeocodeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectCalls++
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	out := make(map[string]cache.GeocodeRow)
	for k, row := range s.geocodes {
		if !row.ExpiresAt.Before(now) {
			out[k] = row
		}
	}
	return out, nil
}

func (s *fakeStore) SelectCategories(_ context.Context, now time.Time) (map[string]cache.CategoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	out := make(map[string]cache.CategoryRow)
	for k, row := range s.categories {
		if !row.ExpiresAt.Before(now) {
			out[k] = row
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, row := range s.geocodes {
		if row.ExpiresAt.Before(now) {
			delete(s.geocodes, k)
			n++
		}
	}
	for k, row := range s.categories {
		if row.ExpiresAt.Before(now) {
			delete(s.categories, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountUnexpired(_ context.Context, now time.Time) (cache.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st cache.Stats
	for _, row := range s.geocodes {
		if !row.ExpiresAt.Before(now) {
			st.Geocoding++
		}
	}
	for _, row := range s.categories {
		if !row.ExpiresAt.Before(now) {
			st.Categorization++
		}
	}
	return st, nil
}

// --- helpers ---

func testFacade(store cache.Store, clock clockwork.Clock) *cache.Facade {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.New(store, 90*24*time.Hour, 30*24*time.Hour, clock, logger, observability.NewMetricsForTesting())
}

// --- tests ---

func TestFacade_WriteThenRead(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := testFacade(newFakeStore(), clock)
	ctx := context.Background()

	ok := f.SetCoordinates(ctx, "CN Tower", domain.Coordinates{Lat: 43.6426, Lng: -79.3871})
	require.True(t, ok)

	coords, hit := f.GetCoordinates(ctx, "CN Tower")
	require.True(t, hit)
	assert.Equal(t, 43.6426, coords.Lat)
	assert.Equal(t, -79.3871, coords.Lng)

	require.True(t, f.SetCategory(ctx, "evt-1", "Live Music Performances"))
	category, hit := f.GetCategory(ctx, "evt-1")
	require.True(t, hit)
	assert.Equal(t, "Live Music Performances", category)
}

func TestFacade_VenueNormalization(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := testFacade(newFakeStore(), clock)
	ctx := context.Background()

	require.True(t, f.SetCoordinates(ctx, "  CN Tower ", domain.Coordinates{Lat: 1, Lng: 2}))

	_, hit := f.GetCoordinates(ctx, "cn tower")
	assert.True(t, hit, "case and whitespace variants must resolve to the same entry")

	_, hit = f.GetCoordinates(ctx, "CN TOWER")
	assert.True(t, hit)
}

func TestFacade_LazyExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	f := testFacade(store, clock)
	ctx := context.Background()

	require.True(t, f.SetCategory(ctx, "evt-1", "Fitness"))

	clock.Advance(30*24*time.Hour + time.Minute)

	_, hit := f.GetCategory(ctx, "evt-1")
	assert.False(t, hit, "expired entry must read as absent even though the row is still present")

	// The physical row is still there until reclamation runs.
	store.mu.Lock()
	_, physical := store.categories["evt-1"]
	store.mu.Unlock()
	assert.True(t, physical)
}

func TestFacade_GeocodingOutlivesCategorization(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := testFacade(newFakeStore(), clock)
	ctx := context.Background()

	require.True(t, f.SetCoordinates(ctx, "casa loma", domain.Coordinates{Lat: 43.678, Lng: -79.409}))
	require.True(t, f.SetCategory(ctx, "evt-1", "Museum Exhibitions"))

	clock.Advance(45 * 24 * time.Hour)

	_, geoHit := f.GetCoordinates(ctx, "casa loma")
	_, catHit := f.GetCategory(ctx, "evt-1")
	assert.True(t, geoHit, "geocoding TTL is 90 days")
	assert.False(t, catHit, "categorization TTL is 30 days")
}

func TestFacade_HydratesFromStoreOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	store.geocodes["cn tower"] = cache.GeocodeRow{
		Coords:    domain.Coordinates{Lat: 43.6426, Lng: -79.3871},
		ExpiresAt: clock.Now().Add(time.Hour),
	}
	store.geocodes["stale venue"] = cache.GeocodeRow{
		Coords:    domain.Coordinates{Lat: 1, Lng: 1},
		ExpiresAt: clock.Now().Add(-time.Hour),
	}
	f := testFacade(store, clock)
	ctx := context.Background()

	_, hit := f.GetCoordinates(ctx, "CN Tower")
	assert.True(t, hit, "pre-seeded unexpired row should hydrate into the mirror")

	_, hit = f.GetCoordinates(ctx, "stale venue")
	assert.False(t, hit, "expired rows must not hydrate")

	f.GetCoordinates(ctx, "anything")
	f.GetCategory(ctx, "evt-1")
	assert.Equal(t, 1, store.selectCalls, "hydration must run exactly once")
}

func TestFacade_HydrationFailureIsFailOpen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	store.selectErr = errors.New("store unavailable")
	f := testFacade(store, clock)
	ctx := context.Background()

	_, hit := f.GetCoordinates(ctx, "CN Tower")
	assert.False(t, hit)

	// A second lookup must not retry the failing bulk read.
	f.GetCoordinates(ctx, "CN Tower")
	assert.Equal(t, 1, store.selectCalls)

	// Writes are unaffected by the failed hydration.
	assert.True(t, f.SetCoordinates(ctx, "CN Tower", domain.Coordinates{Lat: 1, Lng: 2}))
	_, hit = f.GetCoordinates(ctx, "CN Tower")
	assert.True(t, hit)
}

func TestFacade_StoreFailureDoesNotMutateMirror(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	f := testFacade(store, clock)
	ctx := context.Background()

	store.mu.Lock()
	store.upsertErr = errors.New("store unavailable")
	store.mu.Unlock()

	ok := f.SetCategory(ctx, "evt-1", "Fitness")
	assert.False(t, ok)

	_, hit := f.GetCategory(ctx, "evt-1")
	assert.False(t, hit, "mirror must never contain an entry the store rejected")
}

func TestFacade_UpsertOverwrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := testFacade(newFakeStore(), clock)
	ctx := context.Background()

	require.True(t, f.SetCategory(ctx, "evt-1", "Fitness"))
	require.True(t, f.SetCategory(ctx, "evt-1", "Comedy Scene"))

	category, hit := f.GetCategory(ctx, "evt-1")
	require.True(t, hit)
	assert.Equal(t, "Comedy Scene", category)
}

func TestFacade_EmptyKeysRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := testFacade(newFakeStore(), clock)
	ctx := context.Background()

	assert.False(t, f.SetCoordinates(ctx, "   ", domain.Coordinates{Lat: 1, Lng: 2}))
	assert.False(t, f.SetCategory(ctx, "", "Fitness"))
	assert.False(t, f.SetCategory(ctx, "evt-1", ""))

	_, hit := f.GetCoordinates(ctx, "")
	assert.False(t, hit)
}

func TestFacade_PurgeExpiredAndStats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore()
	f := testFacade(store, clock)
	ctx := context.Background()

	require.True(t, f.SetCategory(ctx, "evt-1", "Fitness"))
	require.True(t, f.SetCoordinates(ctx, "cn tower", domain.Coordinates{Lat: 1, Lng: 2}))

	stats, err := f.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Geocoding)
	assert.Equal(t, 1, stats.Categorization)
	assert.Equal(t, 2, stats.Total())

	clock.Advance(31 * 24 * time.Hour)

	removed, err := f.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "only the categorization row has expired")

	stats, err = f.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Geocoding)
	assert.Equal(t, 0, stats.Categorization)
}

func TestFacade_ConcurrentAccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := testFacade(newFakeStore(), clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			f.SetCategory(ctx, id, "Fitness")
		}()
		go func() {
			defer wg.Done()
			f.GetCategory(ctx, id)
		}()
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		category, hit := f.GetCategory(ctx, string(rune('a'+i)))
		require.True(t, hit)
		assert.Equal(t, "Fitness", category)
	}
}
