package weather

import (
	"time"

	"github.com/i474232898/prayer-times/internal/prayer"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Reading is one provider's normalized current conditions for a coordinate.
type Reading struct {
	Provider    string            `json:"provider"`
	Coordinate  prayer.Coordinate `json:"coordinate"`
	Timestamp   time.Time         `json:"timestamp"` // always UTC
	Temperature float64           `json:"temperatureC"`
	Humidity    float64           `json:"humidityPercent,omitempty"`
	WindSpeed   float64           `json:"windSpeed"`
	Pressure    float64           `json:"pressureHpa,omitempty"`
	PrecipMM    float64           `json:"precipMm,omitempty"`
	Condition   Condition         `json:"condition"`
	IsDay       *bool             `json:"isDay,omitempty"`
}
