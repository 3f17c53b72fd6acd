package prayer

import (
	"fmt"
	"math"
)

// Region is a lat/lng bounding box with a fixed timezone.
type Region struct {
	Name     string
	Timezone string
	MinLat   float64
	MaxLat   float64
	MinLng   float64
	MaxLng   float64
}

// Contains reports whether c lies inside the box (edges included).
func (r Region) Contains(c Coordinate) bool {
	return c.Latitude >= r.MinLat && c.Latitude <= r.MaxLat &&
		c.Longitude >= r.MinLng && c.Longitude <= r.MaxLng
}

// GreaterLondon is the coverage area of the regional time source.
var GreaterLondon = Region{
	Name:     "London",
	Timezone: "Europe/London",
	MinLat:   51.28,
	MaxLat:   51.70,
	MinLng:   -0.51,
	MaxLng:   0.34,
}

// KnownRegions is consulted, in order, when a source does not report a
// timezone. Smaller boxes come first.
var KnownRegions = []Region{
	GreaterLondon,
	{Name: "Ireland", Timezone: "Europe/Dublin", MinLat: 51.4, MaxLat: 55.4, MinLng: -10.5, MaxLng: -6.0},
	{Name: "United Kingdom", Timezone: "Europe/London", MinLat: 49.8, MaxLat: 60.9, MinLng: -8.7, MaxLng: 1.8},
	{Name: "Turkey", Timezone: "Europe/Istanbul", MinLat: 35.8, MaxLat: 42.1, MinLng: 26.0, MaxLng: 44.8},
	{Name: "Egypt", Timezone: "Africa/Cairo", MinLat: 22.0, MaxLat: 31.7, MinLng: 24.7, MaxLng: 36.9},
	{Name: "United Arab Emirates", Timezone: "Asia/Dubai", MinLat: 22.6, MaxLat: 26.1, MinLng: 51.5, MaxLng: 56.4},
	{Name: "Saudi Arabia", Timezone: "Asia/Riyadh", MinLat: 16.3, MaxLat: 32.2, MinLng: 34.5, MaxLng: 55.7},
	{Name: "Pakistan", Timezone: "Asia/Karachi", MinLat: 23.6, MaxLat: 37.1, MinLng: 60.8, MaxLng: 77.8},
	{Name: "Malaysia", Timezone: "Asia/Kuala_Lumpur", MinLat: 0.8, MaxLat: 7.4, MinLng: 99.6, MaxLng: 119.3},
	{Name: "Java", Timezone: "Asia/Jakarta", MinLat: -8.8, MaxLat: -5.9, MinLng: 105.1, MaxLng: 114.6},
}

// RegionFor returns the first known region containing c.
func RegionFor(c Coordinate) (Region, bool) {
	for _, r := range KnownRegions {
		if r.Contains(c) {
			return r, true
		}
	}
	return Region{}, false
}

// EstimateTimezone derives a fixed-offset zone from longitude, one hour
// per 15 degrees. It returns "UTC" for a zero offset or an invalid
// coordinate.
func EstimateTimezone(c Coordinate) string {
	if !c.Valid() {
		return "UTC"
	}
	hours := int(math.Round(c.Longitude / 15))
	if hours > 14 {
		hours = 14
	}
	if hours < -12 {
		hours = -12
	}
	if hours == 0 {
		return "UTC"
	}
	// Etc/GMT zones use inverted signs: UTC+3 is Etc/GMT-3.
	if hours > 0 {
		return fmt.Sprintf("Etc/GMT-%d", hours)
	}
	return fmt.Sprintf("Etc/GMT+%d", -hours)
}

// ResolveTimezone applies the lookup chain: reported value, known region,
// longitude estimate.
func ResolveTimezone(reported string, c Coordinate) string {
	if reported != "" {
		return reported
	}
	if r, ok := RegionFor(c); ok {
		return r.Timezone
	}
	return EstimateTimezone(c)
}
