package prayer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Name identifies one of the daily prayer times (plus sunrise).
type Name string

const (
	Fajr    Name = "Fajr"
	Sunrise Name = "Sunrise"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Ordered lists every entry of a TimingSet in chronological order.
var Ordered = []Name{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// Obligatory lists the five prayers that can carry notifications.
var Obligatory = []Name{Fajr, Dhuhr, Asr, Maghrib, Isha}

// ParseName accepts any casing of a prayer name.
func ParseName(s string) (Name, error) {
	for _, n := range Ordered {
		if strings.EqualFold(string(n), strings.TrimSpace(s)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown prayer %q", s)
}

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "H:MM" or "HH:MM". Anything after the minutes
// (e.g. " (BST)") is ignored.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// TimingSet maps every prayer to its "HH:MM" wall-clock time in the
// location's own timezone.
type TimingSet map[Name]string

var errIncompleteSet = errors.New("timing set is incomplete")

// Parse returns the parsed time of day for every entry.
func (s TimingSet) Parse() (map[Name]TimeOfDay, error) {
	out := make(map[Name]TimeOfDay, len(Ordered))
	for _, n := range Ordered {
		raw, ok := s[n]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", errIncompleteSet, n)
		}
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		out[n] = tod
	}
	return out, nil
}

// Validate checks that all entries are present and strictly increasing
// from Fajr to Isha.
func (s TimingSet) Validate() error {
	parsed, err := s.Parse()
	if err != nil {
		return err
	}
	for i := 1; i < len(Ordered); i++ {
		prev, cur := Ordered[i-1], Ordered[i]
		if parsed[cur].Minutes() <= parsed[prev].Minutes() {
			return fmt.Errorf("%s (%s) is not after %s (%s)", cur, s[cur], prev, s[prev])
		}
	}
	return nil
}

// Clone returns a copy of the set.
func (s TimingSet) Clone() TimingSet {
	out := make(TimingSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies on the globe.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// School selects the Asr convention.
type School int

const (
	Shafi  School = 0
	Hanafi School = 1
)

// DefaultSchool matches the persisted preference default.
const DefaultSchool = Hanafi

func (s School) String() string {
	if s == Shafi {
		return "shafi"
	}
	return "hanafi"
}

// ParseSchool accepts "0"/"1" or the school names.
func ParseSchool(v string) (School, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "shafi":
		return Shafi, nil
	case "1", "hanafi":
		return Hanafi, nil
	default:
		return DefaultSchool, fmt.Errorf("unknown school %q", v)
	}
}

// CitySource tells whether the city name came from reverse geocoding.
type CitySource string

const (
	CityResolved  CitySource = "resolved"
	CityEstimated CitySource = "estimated"
)

// LocationContext describes where a timing set applies.
type LocationContext struct {
	Coordinate Coordinate `json:"coordinate"`
	Timezone   string     `json:"timezone"`
	CitySource CitySource `json:"citySource"`
}

// Resolution is the output of a successful resolver call.
type Resolution struct {
	Timings       TimingSet
	Context       LocationContext
	Source        string
	GregorianDate string
	HijriDate     string
}

// Day is the cached, presentation-ready view of one day at one place.
type Day struct {
	Timings        TimingSet  `json:"timings"`
	Timezone       string     `json:"timezone"`
	Maghrib        string     `json:"maghrib"`
	HijriDate      string     `json:"hijriDate,omitempty"`
	GregorianDate  string     `json:"gregorianDate"`
	NextPrayer     Name       `json:"nextPrayer"`
	NextPrayerTime string     `json:"nextPrayerTime"`
	Tomorrow       bool       `json:"tomorrow,omitempty"`
	City           string     `json:"city"`
	CitySource     CitySource `json:"citySource"`
	Date           string     `json:"date"`
	LocationHash   string     `json:"locationHash"`
	Source         string     `json:"source"`
	WrittenAt      time.Time  `json:"writtenAt"`
}

// TimingsRecord is the full-timings record kept for notification rebuilds.
type TimingsRecord struct {
	Timings  TimingSet `json:"timings"`
	Date     string    `json:"date"`
	Timezone string    `json:"timezone"`
}
