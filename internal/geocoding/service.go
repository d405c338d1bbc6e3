package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c-pro/geche"
	"github.com/surrealdb/surrealdb.go"

	"github.com/itsjmendez/adonde/internal/database"
	"github.com/itsjmendez/adonde/internal/domain"
)

// memoryCacheTTL bounds the in-process layer; the cached_location table
// is the durable layer underneath it.
const memoryCacheTTL = time.Hour

// Service resolves locations through a two-level cache before falling
// back to the provider. Provider failures yield nil, logged, never an
// error to the caller: a missing location is a search with no origin,
// not a crash.
type Service struct {
	db        *database.Connection
	provider  Provider
	log       *slog.Logger
	memory    geche.Geche[string, Result]
	cacheStop context.CancelFunc
}

// NewService creates the geocoding service.
func NewService(db *database.Connection, provider Provider) *Service {
	cacheCtx, cacheStop := context.WithCancel(context.Background())
	return &Service{
		db:        db,
		provider:  provider,
		log:       slog.Default().With("service", "geocoding"),
		memory:    geche.NewMapTTLCache[string, Result](cacheCtx, memoryCacheTTL, time.Minute),
		cacheStop: cacheStop,
	}
}

// Close releases the cache janitor.
func (s *Service) Close() {
	s.cacheStop()
}

// Geocode resolves a location string. Lookup order: memory cache,
// cached_location table, provider. Provider hits are written back to
// both layers.
func (s *Service) Geocode(ctx context.Context, location string) *Result {
	key := normalizeLocation(location)
	if key == "" {
		return nil
	}

	if cached, err := s.memory.Get(key); err == nil {
		return &cached
	}

	if r := s.lookupTable(ctx, key); r != nil {
		s.memory.Set(key, *r)
		return r
	}

	result, err := s.provider.Geocode(ctx, location)
	if err != nil {
		s.log.Warn("Geocoding provider failed", "location", location, "error", err)
		return nil
	}
	if result == nil {
		return nil
	}

	s.memory.Set(key, *result)
	s.storeTable(ctx, key, result)
	return result
}

// UpdateSearchLocation geocodes the location and writes it with the
// radius onto the user's profile.
func (s *Service) UpdateSearchLocation(ctx context.Context, userID, location string, radiusMiles int) (*Result, error) {
	if radiusMiles <= 0 {
		radiusMiles = 25
	}

	result := s.Geocode(ctx, location)
	if result == nil {
		return nil, fmt.Errorf("%w: location %q", domain.ErrNotFound, location)
	}

	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		return database.Execute(ctx, conn,
			`UPDATE profile SET
			   search_location = $location,
			   search_radius = $radius,
			   latitude = $lat,
			   longitude = $lng
			 WHERE id = $id`,
			map[string]any{
				"id":       userID,
				"location": location,
				"radius":   radiusMiles,
				"lat":      result.Latitude,
				"lng":      result.Longitude,
			})
	})
	if err != nil {
		return nil, fmt.Errorf("updating search location for %s: %w", userID, err)
	}
	return result, nil
}

func (s *Service) lookupTable(ctx context.Context, key string) *Result {
	type row struct {
		Latitude         float64 `json:"latitude"`
		Longitude        float64 `json:"longitude"`
		FormattedAddress string  `json:"formatted_address"`
	}
	var r *row
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		r, qerr = database.QueryOne[row](ctx, conn,
			"SELECT latitude, longitude, formatted_address FROM cached_location WHERE location_text = $key",
			map[string]any{"key": key})
		return qerr
	})
	if err != nil {
		s.log.Warn("Cached location lookup failed", "key", key, "error", err)
		return nil
	}
	if r == nil {
		return nil
	}
	return &Result{Latitude: r.Latitude, Longitude: r.Longitude, FormattedAddress: r.FormattedAddress}
}

func (s *Service) storeTable(ctx context.Context, key string, result *Result) {
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		return database.Execute(ctx, conn,
			`CREATE cached_location CONTENT {
			   location_text: $key,
			   latitude: $lat,
			   longitude: $lng,
			   formatted_address: $address
			 }`,
			map[string]any{
				"key":     key,
				"lat":     result.Latitude,
				"lng":     result.Longitude,
				"address": result.FormattedAddress,
			})
	})
	if err != nil {
		s.log.Warn("Failed to persist cached location", "key", key, "error", err)
	}
}
