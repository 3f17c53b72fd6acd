package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/prayer-times/internal/prayer"
)

// ErrNoCity is returned when the geocoder knows the place but not its city.
var ErrNoCity = errors.New("no city for coordinate")

type reverseFunc func(geocoder.Location) ([]geocoder.Address, error)

// Google names coordinates through the Google reverse geocoding API.
// Answers are memoized per 2-decimal bucket, the same granularity the
// prayer cache uses.
type Google struct {
	reverse reverseFunc

	mu   sync.Mutex
	seen map[string]string
}

// NewGoogle sets the package-level API key of the geocoder library.
func NewGoogle(apiKey string) *Google {
	geocoder.ApiKey = apiKey
	return &Google{reverse: geocoder.GeocodingReverse, seen: make(map[string]string)}
}

func (g *Google) City(ctx context.Context, c prayer.Coordinate) (string, error) {
	key := fmt.Sprintf("%.2f,%.2f", c.Latitude, c.Longitude)

	g.mu.Lock()
	city, ok := g.seen[key]
	g.mu.Unlock()
	if ok {
		return city, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	addresses, err := g.reverse(geocoder.Location{Latitude: c.Latitude, Longitude: c.Longitude})
	if err != nil {
		return "", fmt.Errorf("reverse geocoding %s: %w", c, err)
	}
	for _, a := range addresses {
		if name := firstNonEmpty(a.City, a.County, a.State); name != "" {
			g.mu.Lock()
			g.seen[key] = name
			g.mu.Unlock()
			return name, nil
		}
	}
	return "", ErrNoCity
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ prayer.CityNamer = (*Google)(nil)
