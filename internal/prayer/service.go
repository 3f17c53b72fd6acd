package prayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Resolving is what the Service needs from a Resolver.
type Resolving interface {
	Resolve(ctx context.Context, coord Coordinate, school School) (Resolution, error)
}

// Service makes the cache the single source of truth for prayer data and
// only reaches the time sources on a cache miss or an explicit refresh.
type Service struct {
	resolver Resolving
	cache    Cache
	namer    CityNamer
	now      func() time.Time
}

// NewService creates a Service. namer may be nil.
func NewService(resolver Resolving, cache Cache, namer CityNamer) *Service {
	return &Service{
		resolver: resolver,
		cache:    cache,
		namer:    namer,
		now:      time.Now,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// LocalDate is the device-local calendar date used as cache key.
func (s *Service) LocalDate() string {
	return s.now().Local().Format("2006-01-02")
}

// Times returns today's prayer data for the device location coord, from
// the cache when the validated entry matches today's date, the location
// bucket and the school.
func (s *Service) Times(ctx context.Context, coord Coordinate, school School) (Day, error) {
	date := s.LocalDate()
	day, err := s.cache.Get(ctx, coord, school, date)
	if err == nil {
		return s.withNext(day), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn().Err(err).Msg("prayer cache read failed; recomputing")
	}
	return s.fetch(ctx, coord, school, date)
}

// Refresh bypasses the validated cache entry and re-resolves coord.
func (s *Service) Refresh(ctx context.Context, coord Coordinate, school School) (Day, error) {
	return s.fetch(ctx, coord, school, s.LocalDate())
}

// Lookup answers a one-off query for any place and school. It reads the
// validated entry when that one matches, but only ever writes a per-place
// entry: the records behind mode evaluation and notification rebuilds stay
// tied to the device location.
func (s *Service) Lookup(ctx context.Context, coord Coordinate, school School, refresh bool) (Day, error) {
	date := s.LocalDate()
	if !refresh {
		if day, err := s.cache.Get(ctx, coord, school, date); err == nil {
			return s.withNext(day), nil
		}
		day, err := s.cache.GetLookup(ctx, coord, school, date)
		if err == nil {
			return s.withNext(day), nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Msg("prayer lookup cache read failed; recomputing")
		}
	}

	day, err := s.resolve(ctx, coord, school, date)
	if err != nil {
		return Day{}, err
	}
	if err := s.cache.PutLookup(ctx, coord, school, date, day); err != nil {
		log.Error().Err(err).Msg("failed to cache prayer lookup")
	}
	return day, nil
}

// Raw returns the last written day regardless of date or location, with
// the next prayer recomputed against now.
func (s *Service) Raw(ctx context.Context) (Day, error) {
	day, err := s.cache.GetRaw(ctx)
	if err != nil {
		return Day{}, err
	}
	return s.withNext(day), nil
}

// LatestTimings returns the last full-timings record, stale or not.
func (s *Service) LatestTimings(ctx context.Context) (TimingsRecord, error) {
	return s.cache.GetTimings(ctx)
}

// Next returns the upcoming prayer for day against the service clock.
func (s *Service) Next(day Day) (Upcoming, error) {
	return NextPrayer(day.Timings, day.Timezone, s.now())
}

func (s *Service) fetch(ctx context.Context, coord Coordinate, school School, date string) (Day, error) {
	day, err := s.resolve(ctx, coord, school, date)
	if err != nil {
		return Day{}, err
	}

	if err := s.cache.Put(ctx, coord, school, date, day); err != nil {
		log.Error().Err(err).Msg("failed to cache prayer times")
	}
	if err := s.cache.PutTimings(ctx, TimingsRecord{Timings: day.Timings, Date: date, Timezone: day.Timezone}); err != nil {
		log.Error().Err(err).Msg("failed to cache full timings")
	}
	return day, nil
}

func (s *Service) resolve(ctx context.Context, coord Coordinate, school School, date string) (Day, error) {
	res, err := s.resolver.Resolve(ctx, coord, school)
	if err != nil {
		return Day{}, err
	}

	city, source := s.cityFor(ctx, coord)
	res.Context.CitySource = source

	gregorian := res.GregorianDate
	if gregorian == "" {
		gregorian = NewZoneClock(res.Context.Timezone, s.now()).Date()
	}

	day := Day{
		Timings:       res.Timings,
		Timezone:      res.Context.Timezone,
		Maghrib:       res.Timings[Maghrib],
		HijriDate:     res.HijriDate,
		GregorianDate: gregorian,
		City:          city,
		CitySource:    source,
		Date:          date,
		Source:        res.Source,
		WrittenAt:     s.now().UTC(),
	}
	day = s.withNext(day)

	log.Info().Str("source", res.Source).Str("timezone", day.Timezone).Str("city", city).
		Str("date", date).Msg("prayer times resolved")
	return day, nil
}

func (s *Service) withNext(day Day) Day {
	next, err := s.Next(day)
	if err != nil {
		log.Warn().Err(err).Msg("cannot compute next prayer")
		return day
	}
	day.NextPrayer = next.Name
	day.NextPrayerTime = next.Time
	day.Tomorrow = next.Tomorrow
	return day
}

func (s *Service) cityFor(ctx context.Context, coord Coordinate) (string, CitySource) {
	if s.namer != nil {
		city, err := s.namer.City(ctx, coord)
		if err == nil && city != "" {
			return city, CityResolved
		}
		if err != nil {
			log.Debug().Err(err).Msg("reverse geocoding failed")
		}
	}
	if r, ok := RegionFor(coord); ok {
		return r.Name, CityEstimated
	}
	return fmt.Sprintf("%.2f, %.2f", coord.Latitude, coord.Longitude), CityEstimated
}
