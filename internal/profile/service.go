package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c-pro/geche"
	"github.com/go-playground/validator/v10"
	"github.com/surrealdb/surrealdb.go"

	"github.com/itsjmendez/adonde/internal/database"
	"github.com/itsjmendez/adonde/internal/domain"
)

// searchCacheTTL keeps a user's last roommate search warm across page
// visits without refetching.
const searchCacheTTL = 30 * time.Minute

// Service manages roommate profiles.
type Service struct {
	db        *database.Connection
	log       *slog.Logger
	validate  *validator.Validate
	searches  geche.Geche[string, []SearchResult]
	cacheStop context.CancelFunc
}

// NewService creates the profile service.
func NewService(db *database.Connection) *Service {
	cacheCtx, cacheStop := context.WithCancel(context.Background())
	return &Service{
		db:        db,
		log:       slog.Default().With("service", "profile"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		searches:  geche.NewMapTTLCache[string, []SearchResult](cacheCtx, searchCacheTTL, time.Minute),
		cacheStop: cacheStop,
	}
}

// Close releases the cache janitor.
func (s *Service) Close() {
	s.cacheStop()
}

// Get fetches one profile by user id.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	var p *Profile
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		p, qerr = database.QueryOne[Profile](ctx, conn,
			"SELECT * FROM profile WHERE id = $id",
			map[string]any{"id": userID})
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching profile %s: %w", userID, err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Create inserts a new profile row.
func (s *Service) Create(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id required", domain.ErrInvalidInput)
	}
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		return database.Execute(ctx, conn,
			"CREATE profile CONTENT $data", map[string]any{"data": p})
	})
	if err != nil {
		return fmt.Errorf("creating profile %s: %w", p.ID, err)
	}
	s.log.Info("Profile created", "user_id", p.ID)
	return nil
}

// Update merges the validated changes into the profile and returns the
// updated row.
func (s *Service) Update(ctx context.Context, userID string, in *UpdateInput) (*Profile, error) {
	if err := in.Validate(s.validate); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}

	var updated *Profile
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		updated, qerr = database.QueryOne[Profile](ctx, conn,
			"UPDATE profile MERGE $data WHERE id = $id RETURN AFTER",
			map[string]any{"id": userID, "data": in})
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("updating profile %s: %w", userID, err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	return updated, nil
}

// CheckComplete reports whether the user finished onboarding. A missing
// row is created as an incomplete stub so later updates have a target.
func (s *Service) CheckComplete(ctx context.Context, userID, email string) (bool, error) {
	type row struct {
		IsComplete bool `json:"is_profile_complete"`
	}
	var r *row
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		r, qerr = database.QueryOne[row](ctx, conn,
			"SELECT is_profile_complete FROM profile WHERE id = $id",
			map[string]any{"id": userID})
		return qerr
	})
	if err != nil {
		return false, fmt.Errorf("checking profile %s: %w", userID, err)
	}
	if r != nil {
		return r.IsComplete, nil
	}

	stub := &Profile{ID: userID, Email: email}
	if err := s.Create(ctx, stub); err != nil {
		return false, err
	}
	return false, nil
}

// SearchRoommates finds complete profiles near a point. Results are
// cached per user for a while so revisiting the finder page does not
// refire the search.
func (s *Service) SearchRoommates(ctx context.Context, userID string, params SearchParams) ([]SearchResult, error) {
	params = params.normalized()

	if cached, err := s.searches.Get(userID); err == nil {
		return cached, nil
	}

	var results []SearchResult
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		results, qerr = database.Scalar[[]SearchResult](ctx, conn,
			"RETURN fn::search_roommates($lat, $lng, $radius, $limit)",
			map[string]any{
				"lat":    params.Latitude,
				"lng":    params.Longitude,
				"radius": params.RadiusMiles,
				"limit":  params.Limit,
			})
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("searching roommates: %w", err)
	}

	s.searches.Set(userID, results)
	return results, nil
}

// InvalidateSearch drops the user's cached results, forcing the next
// search to hit the database. Called when search location changes.
func (s *Service) InvalidateSearch(userID string) {
	s.searches.Del(userID)
}
