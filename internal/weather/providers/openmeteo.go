package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/prayer-times/internal/httpx"
	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *httpx.Client
}

func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpx.New("openmeteo", client, httpx.DefaultBackoff),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, c prayer.Coordinate) (weather.Reading, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", c.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", c.Longitude))
	values.Set("current_weather", "true")
	values.Set("timezone", "GMT")

	var payload struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			Time        string  `json:"time"`
			WeatherCode int     `json:"weathercode"`
			IsDay       *int    `json:"is_day"`
		} `json:"current_weather"`
	}
	if err := p.client.GetJSON(ctx, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Reading{}, err
	}

	// Open-Meteo reports "2006-01-02T15:04" in the requested zone (GMT).
	ts, err := time.Parse("2006-01-02T15:04", payload.CurrentWeather.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	r := weather.Reading{
		Provider:    p.name,
		Timestamp:   ts.UTC(),
		Temperature: payload.CurrentWeather.Temperature,
		// km/h
		WindSpeed: payload.CurrentWeather.WindSpeed / 3.6,
		Condition: mapOpenMeteoCondition(payload.CurrentWeather.WeatherCode),
	}
	if payload.CurrentWeather.IsDay != nil {
		day := *payload.CurrentWeather.IsDay == 1
		r.IsDay = &day
	}
	return r, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
