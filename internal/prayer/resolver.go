package prayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// hourRange is an inclusive plausible hour-of-day range.
type hourRange struct{ min, max int }

// Hour floors below which a regional value is read as a 12-hour clock value.
var correctionFloors = map[Name]int{
	Asr:     13,
	Maghrib: 15,
	Isha:    18,
}

var plausibleHours = map[Name]hourRange{
	Fajr:    {4, 7},
	Sunrise: {4, 9},
	Dhuhr:   {11, 14},
	Asr:     {13, 18},
	Maghrib: {15, 21},
	Isha:    {18, 23},
}

// CorrectUnits rewrites Asr, Maghrib and Isha values reported on a
// 12-hour clock into 24-hour form.
func CorrectUnits(set TimingSet) (TimingSet, error) {
	out := set.Clone()
	for n, floor := range correctionFloors {
		raw, ok := set[n]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrValidation, n)
		}
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if tod.Hour < floor {
			tod.Hour += 12
		}
		out[n] = tod.String()
	}
	return out, nil
}

// ValidateRanges checks every entry against its plausible hour range.
func ValidateRanges(set TimingSet) error {
	for _, n := range Ordered {
		raw, ok := set[n]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrValidation, n)
		}
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		r := plausibleHours[n]
		if tod.Hour < r.min || tod.Hour > r.max {
			return fmt.Errorf("%w: %s at %s outside %02d-%02d", ErrValidation, n, tod, r.min, r.max)
		}
	}
	return nil
}

// Resolver picks a time source for a coordinate, validates its answer and
// falls back to the global source when the regional one cannot be trusted.
type Resolver struct {
	regional RegionalSource
	global   Source
	now      func() time.Time
}

// NewResolver creates a Resolver. regional may be nil.
func NewResolver(regional RegionalSource, global Source) *Resolver {
	return &Resolver{
		regional: regional,
		global:   global,
		now:      time.Now,
	}
}

// WithClock replaces the resolver's clock.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the timing set and location context for coord.
func (r *Resolver) Resolve(ctx context.Context, coord Coordinate, school School) (Resolution, error) {
	if !coord.Valid() {
		return Resolution{}, fmt.Errorf("invalid coordinate %s", coord)
	}

	q := Query{Coordinate: coord, School: school, Date: r.now()}

	if r.regional != nil && r.regional.Coverage().Contains(coord) {
		res, err := r.fetchRegional(ctx, q)
		if err == nil {
			return res, nil
		}
		log.Warn().Err(err).Str("source", r.regional.Name()).Str("coord", coord.String()).
			Msg("regional prayer times rejected; falling back to global source")
	}

	if r.global == nil {
		return Resolution{}, fmt.Errorf("%w: no global source configured", ErrSourceUnavailable)
	}

	sr, err := r.global.Fetch(ctx, q)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Resolution{}, err
		}
		return Resolution{}, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.global.Name(), err)
	}
	if _, err := sr.Timings.Parse(); err != nil {
		return Resolution{}, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.global.Name(), err)
	}
	return r.finish(sr, r.global.Name(), coord), nil
}

func (r *Resolver) fetchRegional(ctx context.Context, q Query) (Resolution, error) {
	sr, err := r.regional.Fetch(ctx, q)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	corrected, err := CorrectUnits(sr.Timings)
	if err != nil {
		return Resolution{}, err
	}
	if err := ValidateRanges(corrected); err != nil {
		return Resolution{}, err
	}
	if err := corrected.Validate(); err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	sr.Timings = corrected
	return r.finish(sr, r.regional.Name(), q.Coordinate), nil
}

func (r *Resolver) finish(sr SourceResult, source string, coord Coordinate) Resolution {
	timings := make(TimingSet, len(Ordered))
	for _, n := range Ordered {
		timings[n] = mustTime(sr.Timings[n])
	}
	return Resolution{
		Timings: timings,
		Context: LocationContext{
			Coordinate: coord,
			Timezone:   ResolveTimezone(sr.Timezone, coord),
			CitySource: CityEstimated,
		},
		Source:        source,
		GregorianDate: sr.GregorianDate,
		HijriDate:     sr.HijriDate,
	}
}
