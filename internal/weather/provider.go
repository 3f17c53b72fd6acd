package weather

import (
	"context"

	"github.com/i474232898/prayer-times/internal/prayer"
)

// Provider abstracts a weather data source (e.g. Open-Meteo, WeatherAPI).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, c prayer.Coordinate) (Reading, error)
}
