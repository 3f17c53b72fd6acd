package prayer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name   string
	result SourceResult
	err    error
	calls  int
	last   Query
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, q Query) (SourceResult, error) {
	f.calls++
	f.last = q
	return f.result, f.err
}

type fakeRegional struct {
	fakeSource
	coverage Region
}

func (f *fakeRegional) Coverage() Region { return f.coverage }

var (
	londonCoord = Coordinate{Latitude: 51.5072, Longitude: -0.1276}
	makkahCoord = Coordinate{Latitude: 21.4225, Longitude: 39.8262}
)

func regional12h() *fakeRegional {
	return &fakeRegional{
		fakeSource: fakeSource{
			name: "regional",
			result: SourceResult{Timings: TimingSet{
				Fajr: "5:19", Sunrise: "6:45", Dhuhr: "12:16",
				Asr: "03:45", Maghrib: "6:02", Isha: "7:32",
			}},
		},
		coverage: GreaterLondon,
	}
}

func globalLondon() *fakeSource {
	return &fakeSource{
		name: "global",
		result: SourceResult{
			Timings:  londonSet(),
			Timezone: "Europe/London",
		},
	}
}

func TestCorrectUnits(t *testing.T) {
	in := TimingSet{
		Fajr: "05:19", Sunrise: "06:45", Dhuhr: "12:16",
		Asr: "03:45", Maghrib: "18:02", Isha: "7:32",
	}
	out, err := CorrectUnits(in)
	require.NoError(t, err)
	assert.Equal(t, "15:45", out[Asr])
	assert.Equal(t, "18:02", out[Maghrib])
	assert.Equal(t, "19:32", out[Isha])
	assert.Equal(t, "03:45", in[Asr], "input must not be modified")
}

func TestValidateRanges(t *testing.T) {
	require.NoError(t, ValidateRanges(londonSet()))

	s := londonSet()
	s[Maghrib] = "23:00"
	assert.ErrorIs(t, ValidateRanges(s), ErrValidation)

	s = londonSet()
	s[Fajr] = "03:59"
	assert.ErrorIs(t, ValidateRanges(s), ErrValidation)
}

func TestResolverUsesCorrectedRegionalInsideCoverage(t *testing.T) {
	reg, glob := regional12h(), globalLondon()
	r := NewResolver(reg, glob)

	res, err := r.Resolve(context.Background(), londonCoord, Hanafi)
	require.NoError(t, err)

	assert.Equal(t, "regional", res.Source)
	assert.Equal(t, "15:45", res.Timings[Asr])
	assert.Equal(t, "18:02", res.Timings[Maghrib])
	assert.Equal(t, "19:32", res.Timings[Isha])
	assert.Equal(t, "05:19", res.Timings[Fajr])
	assert.Equal(t, "Europe/London", res.Context.Timezone, "region box supplies the zone")
	assert.Equal(t, 0, glob.calls)
}

func TestResolverFallsBackWhenRegionalImplausible(t *testing.T) {
	reg, glob := regional12h(), globalLondon()
	// 11:00 becomes 23:00 after correction, still outside 15-21.
	reg.result.Timings[Maghrib] = "11:00"
	r := NewResolver(reg, glob)

	res, err := r.Resolve(context.Background(), londonCoord, Shafi)
	require.NoError(t, err)
	assert.Equal(t, "global", res.Source)
	assert.Equal(t, londonSet(), res.Timings)
	assert.Equal(t, 1, glob.calls)
	assert.Equal(t, Shafi, glob.last.School)
}

func TestResolverAcceptsMorningStyleMaghribAfterCorrection(t *testing.T) {
	reg, glob := regional12h(), globalLondon()
	// A 12-hour "06:00" Maghrib is floored to 18:00 and passes the range check.
	reg.result.Timings[Maghrib] = "06:00"

	res, err := NewResolver(reg, glob).Resolve(context.Background(), londonCoord, Hanafi)
	require.NoError(t, err)
	assert.Equal(t, "regional", res.Source)
	assert.Equal(t, "18:00", res.Timings[Maghrib])
	assert.Equal(t, 0, glob.calls)
}

func TestResolverFallsBackWhenRegionalErrors(t *testing.T) {
	reg, glob := regional12h(), globalLondon()
	reg.err = errors.New("boom")

	res, err := NewResolver(reg, glob).Resolve(context.Background(), londonCoord, Hanafi)
	require.NoError(t, err)
	assert.Equal(t, "global", res.Source)
}

func TestResolverSkipsRegionalOutsideCoverage(t *testing.T) {
	reg := regional12h()
	glob := &fakeSource{name: "global", result: SourceResult{Timings: TimingSet{
		Fajr: "05:40", Sunrise: "06:55", Dhuhr: "12:25",
		Asr: "15:48", Maghrib: "18:00", Isha: "19:30",
	}}}

	res, err := NewResolver(reg, glob).Resolve(context.Background(), makkahCoord, Shafi)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.calls)
	assert.Equal(t, "Asia/Riyadh", res.Context.Timezone)
}

func TestResolverGlobalIsNotRangeValidated(t *testing.T) {
	// High latitude summer: Isha past midnight would fail range checks.
	glob := &fakeSource{name: "global", result: SourceResult{
		Timings: TimingSet{
			Fajr: "01:10", Sunrise: "03:30", Dhuhr: "13:10",
			Asr: "17:40", Maghrib: "22:50", Isha: "00:20",
		},
		Timezone: "Europe/Oslo",
	}}

	res, err := NewResolver(nil, glob).Resolve(context.Background(), Coordinate{Latitude: 69.65, Longitude: 18.96}, Shafi)
	require.NoError(t, err)
	assert.Equal(t, "00:20", res.Timings[Isha])
	assert.Equal(t, "Europe/Oslo", res.Context.Timezone)
}

func TestResolverAllSourcesFail(t *testing.T) {
	reg := regional12h()
	reg.err = errors.New("down")
	glob := &fakeSource{name: "global", err: errors.New("down too")}

	_, err := NewResolver(reg, glob).Resolve(context.Background(), londonCoord, Hanafi)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestResolverRejectsInvalidCoordinate(t *testing.T) {
	_, err := NewResolver(nil, globalLondon()).Resolve(context.Background(), Coordinate{Latitude: 91}, Hanafi)
	assert.Error(t, err)
}

func TestResolverPassesClockDate(t *testing.T) {
	glob := globalLondon()
	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewResolver(nil, glob).WithClock(func() time.Time { return day })

	_, err := r.Resolve(context.Background(), londonCoord, Hanafi)
	require.NoError(t, err)
	assert.True(t, glob.last.Date.Equal(day))
}

func TestTimezoneChain(t *testing.T) {
	assert.Equal(t, "America/Chicago", ResolveTimezone("America/Chicago", londonCoord))
	assert.Equal(t, "Europe/London", ResolveTimezone("", londonCoord))
	assert.Equal(t, "Asia/Dubai", ResolveTimezone("", Coordinate{Latitude: 25.2, Longitude: 55.27}))
	// Middle of the Pacific: longitude estimate.
	assert.Equal(t, "Etc/GMT+10", ResolveTimezone("", Coordinate{Latitude: 0, Longitude: -150}))
	assert.Equal(t, "Etc/GMT-9", ResolveTimezone("", Coordinate{Latitude: -30, Longitude: 135}))
	assert.Equal(t, "UTC", ResolveTimezone("", Coordinate{Latitude: 0, Longitude: 3}))
	assert.Equal(t, "UTC", EstimateTimezone(Coordinate{Latitude: 100}))
}
