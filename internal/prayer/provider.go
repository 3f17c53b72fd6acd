package prayer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable is returned when no time source produced a usable answer.
	ErrSourceUnavailable = errors.New("prayer time source unavailable")
	// ErrValidation marks an implausible value in a source response.
	ErrValidation = errors.New("implausible prayer time")
	// ErrCacheMiss signals that a cached record is absent or stale. It is not a failure.
	ErrCacheMiss = errors.New("prayer time cache miss")
)

// Query carries the parameters every time source understands.
type Query struct {
	Coordinate Coordinate
	School     School
	Date       time.Time
}

// SourceResult is a time source's answer before resolution.
type SourceResult struct {
	Timings       TimingSet
	Timezone      string // empty when the source does not report one
	GregorianDate string
	HijriDate     string
}

// Source abstracts an external prayer-time API.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (SourceResult, error)
}

// RegionalSource is a high-precision source that only serves a bounded area.
type RegionalSource interface {
	Source
	Coverage() Region
}

// Cache is the contract the cache layer satisfies.
type Cache interface {
	Get(ctx context.Context, coord Coordinate, school School, date string) (Day, error)
	Put(ctx context.Context, coord Coordinate, school School, date string, day Day) error
	GetLookup(ctx context.Context, coord Coordinate, school School, date string) (Day, error)
	PutLookup(ctx context.Context, coord Coordinate, school School, date string, day Day) error
	GetRaw(ctx context.Context) (Day, error)
	PutTimings(ctx context.Context, rec TimingsRecord) error
	GetTimings(ctx context.Context) (TimingsRecord, error)
}

// CityNamer maps a coordinate to a human readable place name.
type CityNamer interface {
	City(ctx context.Context, coord Coordinate) (string, error)
}
