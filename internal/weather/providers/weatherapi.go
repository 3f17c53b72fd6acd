package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/prayer-times/internal/httpx"
	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/weather"
)

var errNoAPIKey = errors.New("weatherapi api key is not configured")

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *httpx.Client
}

func NewWeatherAPIProvider(client *http.Client, baseURL, apiKey string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = "https://api.weatherapi.com/v1/current.json"
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpx.New("weatherapi", client, httpx.DefaultBackoff),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, c prayer.Coordinate) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, errNoAPIKey
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", fmt.Sprintf("%f,%f", c.Latitude, c.Longitude))

	var payload struct {
		Location struct {
			LocaltimeEpoch int64 `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			TempC      float64 `json:"temp_c"`
			Humidity   float64 `json:"humidity"`
			WindKph    float64 `json:"wind_kph"`
			PressureMb float64 `json:"pressure_mb"`
			PrecipMm   float64 `json:"precip_mm"`
			IsDay      *int    `json:"is_day"`
			Condition  struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := p.client.GetJSON(ctx, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Reading{}, err
	}

	ts := time.Now().UTC()
	if payload.Location.LocaltimeEpoch > 0 {
		ts = time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	}

	r := weather.Reading{
		Provider:    p.name,
		Timestamp:   ts,
		Temperature: payload.Current.TempC,
		Humidity:    payload.Current.Humidity,
		WindSpeed:   payload.Current.WindKph / 3.6,
		Pressure:    payload.Current.PressureMb,
		PrecipMM:    payload.Current.PrecipMm,
		Condition:   mapWeatherAPICondition(payload.Current.Condition.Text),
	}
	if payload.Current.IsDay != nil {
		day := *payload.Current.IsDay == 1
		r.IsDay = &day
	}
	return r, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return weather.ConditionUnknown
	case hasAny(t, "thunder", "storm"):
		return weather.ConditionStorm
	case hasAny(t, "snow", "sleet", "blizzard", "ice"):
		return weather.ConditionSnow
	case hasAny(t, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case hasAny(t, "mist", "fog"):
		return weather.ConditionMist
	case hasAny(t, "cloud", "overcast"):
		return weather.ConditionCloudy
	case hasAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}

func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
