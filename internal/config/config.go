package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/prayer-times/internal/prayer"
)

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string

	HTTPTimeout time.Duration

	RegionalAPIKey     string
	RegionalBaseURL    string
	RegionalRatePerSec float64

	GlobalBaseURL     string
	CalculationMethod int

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	// Notifications go to MQTT when a broker is set, otherwise to the log.
	MQTTBrokerURL   string
	MQTTTopicPrefix string

	GoogleGeocoderAPIKey string
	WeatherAPIKey        string

	// DefaultLocation seeds the location provider at startup (optional).
	DefaultLocation *prayer.Coordinate

	ModeRefreshInterval   time.Duration
	NotificationRebuildAt string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Env = getenvDefault("APP_ENV", "development")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.RegionalAPIKey = os.Getenv("REGIONAL_API_KEY")
	cfg.RegionalBaseURL = getenvDefault("REGIONAL_BASE_URL", "https://www.londonprayertimes.com/api/times/")
	cfg.RegionalRatePerSec = getenvFloat("REGIONAL_RATE_PER_SEC", 1)

	cfg.GlobalBaseURL = getenvDefault("GLOBAL_BASE_URL", "https://api.aladhan.com/v1")
	cfg.CalculationMethod = getenvInt("CALCULATION_METHOD", 2)

	cfg.RedisAddress = os.Getenv("REDIS_ADDRESS")
	cfg.RedisUsername = os.Getenv("REDIS_USERNAME")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.MQTTBrokerURL = os.Getenv("MQTT_BROKER_URL")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "prayer-times")

	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")

	loc, err := loadDefaultLocation()
	if err != nil {
		return nil, err
	}
	cfg.DefaultLocation = loc

	interval, err := time.ParseDuration(getenvDefault("MODE_REFRESH_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid MODE_REFRESH_INTERVAL: %w", err)
	}
	cfg.ModeRefreshInterval = interval

	cfg.NotificationRebuildAt = getenvDefault("NOTIFICATION_REBUILD_AT", "00:05")
	if _, err := prayer.ParseTimeOfDay(cfg.NotificationRebuildAt); err != nil {
		return nil, fmt.Errorf("invalid NOTIFICATION_REBUILD_AT: %w", err)
	}

	return cfg, nil
}

func loadDefaultLocation() (*prayer.Coordinate, error) {
	lat := os.Getenv("DEFAULT_LATITUDE")
	lon := os.Getenv("DEFAULT_LONGITUDE")
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, fmt.Errorf("DEFAULT_LATITUDE and DEFAULT_LONGITUDE must be set together")
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LATITUDE: %w", err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LONGITUDE: %w", err)
	}
	c := prayer.Coordinate{Latitude: la, Longitude: lo}
	if !c.Valid() {
		return nil, fmt.Errorf("default location %s out of range", c)
	}
	return &c, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
