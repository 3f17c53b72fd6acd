package prayer

import (
	"time"
)

// LoadZone resolves an IANA identifier, returning UTC when it is unknown.
func LoadZone(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ZoneClock compares wall-clock strings of one timezone against an
// absolute "now". It formats now into the zone's wall clock, reads those
// components back as a naive instant and keeps offset = now - naive.
// Any wall-clock time on the same date then maps to an absolute instant
// by adding the same offset.
//
// Every caller that needs "HH:MM in zone X" as an instant goes through
// this type.
type ZoneClock struct {
	now      time.Time
	naiveNow time.Time
	offset   time.Duration
	zone     string
}

// NewZoneClock captures now in the wall clock of tz.
func NewZoneClock(tz string, now time.Time) ZoneClock {
	loc := LoadZone(tz)
	w := now.In(loc)
	naive := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
	return ZoneClock{
		now:      now,
		naiveNow: naive,
		offset:   now.Sub(naive),
		zone:     loc.String(),
	}
}

// Now returns the absolute instant the clock was captured at.
func (c ZoneClock) Now() time.Time { return c.now }

// Zone returns the resolved timezone name (UTC for unknown identifiers).
func (c ZoneClock) Zone() string { return c.zone }

// Offset is now minus the naive wall-clock instant.
func (c ZoneClock) Offset() time.Duration { return c.offset }

// Date returns the zone's calendar date as YYYY-MM-DD.
func (c ZoneClock) Date() string {
	return c.naiveNow.Format("2006-01-02")
}

// WallClock returns the zone's current time of day.
func (c ZoneClock) WallClock() TimeOfDay {
	return TimeOfDay{Hour: c.naiveNow.Hour(), Minute: c.naiveNow.Minute()}
}

// Instant maps a time of day on today's (plus dayShift) zone date to an
// absolute instant.
func (c ZoneClock) Instant(tod TimeOfDay, dayShift int) time.Time {
	naive := time.Date(c.naiveNow.Year(), c.naiveNow.Month(), c.naiveNow.Day()+dayShift, tod.Hour, tod.Minute, 0, 0, time.UTC)
	return naive.Add(c.offset)
}

// Instants maps every entry of set to an absolute instant on today's zone
// date. When Isha falls before Maghrib it is moved to the following day.
func (c ZoneClock) Instants(set TimingSet) (map[Name]time.Time, error) {
	parsed, err := set.Parse()
	if err != nil {
		return nil, err
	}
	out := make(map[Name]time.Time, len(parsed))
	for n, tod := range parsed {
		out[n] = c.Instant(tod, 0)
	}
	if !out[Isha].After(out[Maghrib]) {
		out[Isha] = c.Instant(parsed[Isha], 1)
	}
	return out, nil
}

// Upcoming is the next prayer relative to a point in time.
type Upcoming struct {
	Name     Name      `json:"name"`
	Time     string    `json:"time"`
	At       time.Time `json:"at"`
	Tomorrow bool      `json:"tomorrow"`
}

// NextPrayer returns the first entry of set, in chronological order, that
// lies strictly after now in the timezone tz. When the day is over it
// returns tomorrow's Fajr.
func NextPrayer(set TimingSet, tz string, now time.Time) (Upcoming, error) {
	clock := NewZoneClock(tz, now)
	instants, err := clock.Instants(set)
	if err != nil {
		return Upcoming{}, err
	}
	today := clock.Date()
	for _, n := range Ordered {
		at := instants[n]
		if at.After(now) {
			return Upcoming{
				Name:     n,
				Time:     mustTime(set[n]),
				At:       at,
				Tomorrow: at.Add(-clock.Offset()).Format("2006-01-02") != today,
			}, nil
		}
	}
	fajr, _ := ParseTimeOfDay(set[Fajr])
	return Upcoming{
		Name:     Fajr,
		Time:     fajr.String(),
		At:       clock.Instant(fajr, 1),
		Tomorrow: true,
	}, nil
}

func mustTime(raw string) string {
	tod, err := ParseTimeOfDay(raw)
	if err != nil {
		return raw
	}
	return tod.String()
}
