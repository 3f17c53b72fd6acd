package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/weather"
)

var mecca = prayer.Coordinate{Latitude: 21.4225, Longitude: 39.8262}

func TestOpenMeteoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		assert.Equal(t, "21.422500", r.URL.Query().Get("latitude"))
		_, _ = w.Write([]byte(`{"current_weather":{"temperature":36.0,"windspeed":18.0,"time":"2024-03-01T12:00","weathercode":0,"is_day":1}}`))
	}))
	defer srv.Close()

	r, err := NewOpenMeteoProvider(srv.Client(), srv.URL).Fetch(context.Background(), mecca)
	require.NoError(t, err)
	assert.Equal(t, "openmeteo", r.Provider)
	assert.Equal(t, 36.0, r.Temperature)
	assert.InDelta(t, 5.0, r.WindSpeed, 1e-9)
	assert.Equal(t, weather.ConditionClear, r.Condition)
	require.NotNil(t, r.IsDay)
	assert.True(t, *r.IsDay)
	assert.Equal(t, 12, r.Timestamp.Hour())
}

func TestWeatherAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.Equal(t, "21.422500,39.826200", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"location":{"localtime_epoch":1709294400},"current":{"temp_c":30.5,"humidity":20,"wind_kph":36,"pressure_mb":1012,"precip_mm":0,"is_day":0,"condition":{"text":"Patchy light drizzle"}}}`))
	}))
	defer srv.Close()

	r, err := NewWeatherAPIProvider(srv.Client(), srv.URL, "k").Fetch(context.Background(), mecca)
	require.NoError(t, err)
	assert.Equal(t, 30.5, r.Temperature)
	assert.InDelta(t, 10.0, r.WindSpeed, 1e-9)
	assert.Equal(t, weather.ConditionRain, r.Condition)
	require.NotNil(t, r.IsDay)
	assert.False(t, *r.IsDay)
}

func TestWeatherAPIRequiresKey(t *testing.T) {
	_, err := NewWeatherAPIProvider(http.DefaultClient, "", "").Fetch(context.Background(), mecca)
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestConditionMapping(t *testing.T) {
	assert.Equal(t, weather.ConditionMist, mapOpenMeteoCondition(45))
	assert.Equal(t, weather.ConditionStorm, mapOpenMeteoCondition(95))
	assert.Equal(t, weather.ConditionStorm, mapWeatherAPICondition("Thundery outbreaks with rain"))
	assert.Equal(t, weather.ConditionCloudy, mapWeatherAPICondition("Overcast"))
	assert.Equal(t, weather.ConditionUnknown, mapWeatherAPICondition(""))
}
