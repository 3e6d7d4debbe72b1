// Package duckdb persists the response caches in an embedded DuckDB
// database, one table per cache domain.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/datespot/aggregator/internal/cache"
	"github.com/datespot/aggregator/internal/domain"
)

// Store implements cache.Store on a DuckDB database. DuckDB provides the
// row-level upsert semantics the facade relies on; no additional locking is
// done here.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the cache database at path and ensures
// the schema exists. An empty path opens an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS geocoding_cache (
			venue_name VARCHAR PRIMARY KEY,
			lat        DOUBLE NOT NULL,
			lng        DOUBLE NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categorization_cache (
			event_id   VARCHAR PRIMARY KEY,
			category   VARCHAR NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate cache schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertGeocode(ctx context.Context, venueName string, coords domain.Coordinates, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocoding_cache (venue_name, lat, lng, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (venue_name) DO UPDATE SET
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			expires_at = EXCLUDED.expires_at`,
		venueName, coords.Lat, coords.Lng, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert geocoding_cache: %w", err)
	}
	return nil
}

func (s *Store) UpsertCategory(ctx context.Context, eventID, category string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categorization_cache (event_id, category, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (event_id) DO UPDATE SET
			category = EXCLUDED.category,
			expires_at = EXCLUDED.expires_at`,
		eventID, category, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert categorization_cache: %w", err)
	}
	return nil
}

func (s *Store) SelectGeocodes(ctx context.Context, now time.Time) (map[string]cache.GeocodeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT venue_name, lat, lng, expires_at FROM geocoding_cache WHERE expires_at >= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("select geocoding_cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]cache.GeocodeRow)
	for rows.Next() {
		var (
			venue     string
			row       cache.GeocodeRow
			expiresAt time.Time
		)
		if err := rows.Scan(&venue, &row.Coords.Lat, &row.Coords.Lng, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan geocoding_cache: %w", err)
		}
		row.ExpiresAt = expiresAt
		out[venue] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geocoding_cache: %w", err)
	}
	return out, nil
}

func (s *Store) SelectCategories(ctx context.Context, now time.Time) (map[string]cache.CategoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, category, expires_at FROM categorization_cache WHERE expires_at >= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("select categorization_cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]cache.CategoryRow)
	for rows.Next() {
		var (
			eventID   string
			row       cache.CategoryRow
			expiresAt time.Time
		)
		if err := rows.Scan(&eventID, &row.Category, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan categorization_cache: %w", err)
		}
		row.ExpiresAt = expiresAt
		out[eventID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categorization_cache: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"geocoding_cache", "categorization_cache"} {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE expires_at < ?`, table), now)
		if err != nil {
			return total, fmt.Errorf("delete expired %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func (s *Store) CountUnexpired(ctx context.Context, now time.Time) (cache.Stats, error) {
	var stats cache.Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM geocoding_cache WHERE expires_at >= ?`, now).Scan(&stats.Geocoding); err != nil {
		return stats, fmt.Errorf("count geocoding_cache: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categorization_cache WHERE expires_at >= ?`, now).Scan(&stats.Categorization); err != nil {
		return stats, fmt.Errorf("count categorization_cache: %w", err)
	}
	return stats, nil
}
