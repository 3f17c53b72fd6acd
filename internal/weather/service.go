package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/store"
)

var (
	ErrNoProviders = errors.New("no weather providers configured")
	ErrUnavailable = errors.New("weather unavailable from every provider")
)

// DefaultMaxAge bounds how long a reading is served from the store.
const DefaultMaxAge = 15 * time.Minute

// Service asks providers in order and keeps the first successful reading
// per location bucket for MaxAge.
type Service struct {
	store     store.Store
	providers []Provider
	maxAge    time.Duration
	now       func() time.Time
}

// NewService creates a new Service. store may be nil to disable caching.
func NewService(s store.Store, providers []Provider) *Service {
	return &Service{
		store:     s,
		providers: providers,
		maxAge:    DefaultMaxAge,
		now:       time.Now,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Current returns the current conditions at c.
func (s *Service) Current(ctx context.Context, c prayer.Coordinate) (Reading, error) {
	if len(s.providers) == 0 {
		return Reading{}, ErrNoProviders
	}
	key := cacheKey(c)

	if r, ok := s.cached(ctx, key); ok {
		return r, nil
	}

	var errs []error
	for _, p := range s.providers {
		r, err := p.Fetch(ctx, c)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Str("location", c.String()).Msg("weather fetch failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		r.Coordinate = c
		s.save(ctx, key, r)
		return r, nil
	}
	return Reading{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func (s *Service) cached(ctx context.Context, key string) (Reading, bool) {
	if s.store == nil {
		return Reading{}, false
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return Reading{}, false
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Reading{}, false
	}
	if s.now().Sub(e.FetchedAt) > s.maxAge {
		return Reading{}, false
	}
	return e.Reading, true
}

func (s *Service) save(ctx context.Context, key string, r Reading) {
	if s.store == nil {
		return
	}
	b, err := json.Marshal(entry{Reading: r, FetchedAt: s.now().UTC()})
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, string(b)); err != nil {
		log.Warn().Err(err).Msg("failed to cache weather reading")
	}
}

type entry struct {
	Reading   Reading   `json:"reading"`
	FetchedAt time.Time `json:"fetchedAt"`
}

func cacheKey(c prayer.Coordinate) string {
	return fmt.Sprintf("weather:%.2f,%.2f", c.Latitude, c.Longitude)
}
