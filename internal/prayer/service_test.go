package prayer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/prayer-times/internal/cache"
	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/store"
)

type countingResolver struct {
	calls int
	err   error
}

func (r *countingResolver) Resolve(_ context.Context, coord prayer.Coordinate, _ prayer.School) (prayer.Resolution, error) {
	r.calls++
	if r.err != nil {
		return prayer.Resolution{}, r.err
	}
	return prayer.Resolution{
		Timings: prayer.TimingSet{
			prayer.Fajr: "05:19", prayer.Sunrise: "06:45", prayer.Dhuhr: "12:16",
			prayer.Asr: "15:45", prayer.Maghrib: "18:02", prayer.Isha: "19:32",
		},
		Context: prayer.LocationContext{Coordinate: coord, Timezone: zoneFor(coord), CitySource: prayer.CityEstimated},
		Source:  "global",
	}, nil
}

func zoneFor(c prayer.Coordinate) string {
	if c.Longitude > 100 {
		return "Asia/Tokyo"
	}
	return "Europe/London"
}

type staticNamer struct {
	city string
	err  error
}

func (n staticNamer) City(context.Context, prayer.Coordinate) (string, error) { return n.city, n.err }

var london = prayer.Coordinate{Latitude: 51.5072, Longitude: -0.1276}

func newService(r prayer.Resolving, namer prayer.CityNamer, now time.Time) (*prayer.Service, *cache.PrayerCache) {
	c := cache.New(store.NewMemoryStore())
	svc := prayer.NewService(r, c, namer).WithClock(func() time.Time { return now })
	return svc, c
}

func TestServiceTimesFetchesOnceThenServesCache(t *testing.T) {
	ctx := context.Background()
	r := &countingResolver{}
	now := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	svc, _ := newService(r, staticNamer{city: "London"}, now)

	day, err := svc.Times(ctx, london, prayer.Hanafi)
	require.NoError(t, err)
	assert.Equal(t, prayer.Maghrib, day.NextPrayer)
	assert.Equal(t, "18:02", day.NextPrayerTime)
	assert.Equal(t, "London", day.City)
	assert.Equal(t, prayer.CityResolved, day.CitySource)
	assert.Equal(t, "18:02", day.Maghrib)

	again, err := svc.Times(ctx, prayer.Coordinate{Latitude: 51.5091, Longitude: -0.1301}, prayer.Hanafi)
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls, "nearby read must hit the cache")
	assert.Equal(t, day.Timings, again.Timings)
}

func TestServiceRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	r := &countingResolver{}
	svc, _ := newService(r, nil, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	_, err := svc.Times(ctx, london, prayer.Hanafi)
	require.NoError(t, err)
	day, err := svc.Refresh(ctx, london, prayer.Hanafi)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
	assert.Equal(t, prayer.CityEstimated, day.CitySource)
	assert.Equal(t, "London", day.City, "region name is the estimate")
}

func TestServiceRawAndTimingsSurviveFailures(t *testing.T) {
	ctx := context.Background()
	r := &countingResolver{}
	svc, _ := newService(r, staticNamer{err: errors.New("no geocoder")}, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))

	_, err := svc.Raw(ctx)
	assert.ErrorIs(t, err, prayer.ErrCacheMiss)

	_, err = svc.Times(ctx, london, prayer.Hanafi)
	require.NoError(t, err)

	r.err = prayer.ErrSourceUnavailable
	_, err = svc.Refresh(ctx, london, prayer.Hanafi)
	assert.ErrorIs(t, err, prayer.ErrSourceUnavailable)

	raw, err := svc.Raw(ctx)
	require.NoError(t, err)
	assert.Equal(t, prayer.Fajr, raw.NextPrayer)
	assert.True(t, raw.Tomorrow)

	rec, err := svc.LatestTimings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", rec.Timezone)
	assert.Equal(t, "19:32", rec.Timings[prayer.Isha])
}

func TestServiceLookupLeavesDeviceRecordsAlone(t *testing.T) {
	ctx := context.Background()
	r := &countingResolver{}
	svc, _ := newService(r, nil, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	tokyo := prayer.Coordinate{Latitude: 35.6762, Longitude: 139.6503}

	_, err := svc.Times(ctx, london, prayer.Hanafi)
	require.NoError(t, err)

	day, err := svc.Lookup(ctx, tokyo, prayer.Hanafi, false)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", day.Timezone)

	rec, err := svc.LatestTimings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", rec.Timezone)

	_, err = svc.Times(ctx, london, prayer.Hanafi)
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, tokyo, prayer.Hanafi, false)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)

	// The device entry answers a lookup for the same place and school.
	_, err = svc.Lookup(ctx, london, prayer.Hanafi, false)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)

	_, err = svc.Lookup(ctx, tokyo, prayer.Hanafi, true)
	require.NoError(t, err)
	assert.Equal(t, 3, r.calls)
}

func TestServiceTimesMissesOnOtherSchool(t *testing.T) {
	ctx := context.Background()
	r := &countingResolver{}
	svc, _ := newService(r, nil, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	_, err := svc.Times(ctx, london, prayer.Hanafi)
	require.NoError(t, err)
	_, err = svc.Times(ctx, london, prayer.Shafi)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}
