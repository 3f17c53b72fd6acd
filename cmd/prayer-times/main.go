package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/prayer-times/internal/api/http"
	"github.com/i474232898/prayer-times/internal/cache"
	"github.com/i474232898/prayer-times/internal/config"
	"github.com/i474232898/prayer-times/internal/geocode"
	"github.com/i474232898/prayer-times/internal/location"
	"github.com/i474232898/prayer-times/internal/logging"
	"github.com/i474232898/prayer-times/internal/mode"
	"github.com/i474232898/prayer-times/internal/notify"
	"github.com/i474232898/prayer-times/internal/prayer"
	prayerproviders "github.com/i474232898/prayer-times/internal/prayer/providers"
	"github.com/i474232898/prayer-times/internal/scheduler"
	"github.com/i474232898/prayer-times/internal/store"
	"github.com/i474232898/prayer-times/internal/weather"
	weatherproviders "github.com/i474232898/prayer-times/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	kv, closeStore := openStore(ctx, cfg)
	defer closeStore()
	prayerCache := cache.New(kv)
	prefs := cache.NewPreferences(kv)

	// Time sources with resilience (backoff + circuit breaker).
	var regional prayer.RegionalSource
	if cfg.RegionalAPIKey != "" {
		regional = prayerproviders.NewRateLimitedRegional(
			prayerproviders.NewRegionalProvider(httpClient, cfg.RegionalBaseURL, cfg.RegionalAPIKey),
			cfg.RegionalRatePerSec, 1,
		)
	} else {
		log.Info().Msg("REGIONAL_API_KEY not set; using the global source everywhere")
	}
	global := prayerproviders.NewAladhanProvider(httpClient, cfg.GlobalBaseURL, cfg.CalculationMethod)
	resolver := prayer.NewResolver(regional, global)

	var namer prayer.CityNamer
	if cfg.GoogleGeocoderAPIKey != "" {
		namer = geocode.NewGoogle(cfg.GoogleGeocoderAPIKey)
	}
	prayerService := prayer.NewService(resolver, prayerCache, namer)

	loc := location.NewManual(ctx, prefs)
	if cfg.DefaultLocation != nil {
		if err := loc.Set(ctx, *cfg.DefaultLocation); err != nil {
			log.Fatal().Err(err).Msg("failed to seed default location")
		}
	}

	state := mode.NewState()
	unsubscribe := state.Subscribe(func(s mode.Snapshot) {
		log.Info().Str("automatic", string(s.Automatic)).Str("effective", string(s.Effective)).Msg("mode changed")
	})
	defer unsubscribe()
	evaluator := mode.NewEvaluator(state, loc, prayerService, prefs)

	sender, closeSender := newSender(cfg)
	defer closeSender()
	dispatcher := notify.NewLocalDispatcher(sender)
	defer dispatcher.Stop()
	notifier := notify.NewScheduler(dispatcher)

	sched := scheduler.New(evaluator, prayerService, notifier, prefs, cfg.ModeRefreshInterval, cfg.NotificationRebuildAt)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Restore the pending set after a restart.
	if _, err := sched.RebuildNotifications(ctx); err != nil {
		log.Info().Err(err).Msg("no notifications restored at startup")
	}

	weatherService := weather.NewService(kv, []weather.Provider{
		weatherproviders.NewOpenMeteoProvider(httpClient, ""),
		weatherproviders.NewWeatherAPIProvider(httpClient, "", cfg.WeatherAPIKey),
	})

	app := httpapi.NewApp("prayer-times")
	app.Use(logger.New())
	app.Use(recover.New())
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Prayer:        prayerService,
		Evaluator:     evaluator,
		Location:      loc,
		Preferences:   prefs,
		Notifications: sched,
		Pending:       notifier,
		Permission:    dispatcher,
		Weather:       weatherService,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

// openStore uses Redis when configured and the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.AppConfig) (store.Store, func()) {
	if cfg.RedisAddress == "" {
		log.Info().Msg("REDIS_ADDRESS not set; using in-memory store")
		return store.NewMemoryStore(), func() {}
	}
	rs, err := store.NewRedisStore(ctx, store.RedisOptions{
		Address:  cfg.RedisAddress,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		Prefix:   "prayer-times:",
	})
	if err != nil {
		log.Error().Err(err).Msg("redis unavailable; falling back to in-memory store")
		return store.NewMemoryStore(), func() {}
	}
	return rs, func() {
		if err := rs.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
}

func newSender(cfg *config.AppConfig) (notify.Sender, func()) {
	if cfg.MQTTBrokerURL == "" {
		return notify.LogSender{}, func() {}
	}
	s, err := notify.NewMQTTSender(cfg.MQTTBrokerURL, cfg.MQTTTopicPrefix)
	if err != nil {
		log.Error().Err(err).Msg("mqtt unavailable; notifications go to the log")
		return notify.LogSender{}, func() {}
	}
	return s, s.Close
}
