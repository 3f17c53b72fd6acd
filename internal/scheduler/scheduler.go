package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/prayer-times/internal/mode"
	"github.com/i474232898/prayer-times/internal/notify"
	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/store"
)

// SettingsKey is where the notification settings document is stored.
const SettingsKey = "pref:notifications"

// ErrNoTimings is returned by a rebuild before any prayer times were cached.
var ErrNoTimings = errors.New("no cached prayer timings")

// ModeTicker is the periodic mode re-evaluation.
type ModeTicker interface {
	Tick(ctx context.Context) (mode.Evaluation, error)
	Refresh(ctx context.Context) (mode.Evaluation, error)
}

// TimingsSource returns the last full set of prayer timings.
type TimingsSource interface {
	LatestTimings(ctx context.Context) (prayer.TimingsRecord, error)
}

// Notifier rebuilds the pending notification set.
type Notifier interface {
	Schedule(ctx context.Context, settings notify.Settings, timings prayer.TimingSet, tz string) (notify.Result, error)
}

// JSONStore persists the notification settings.
type JSONStore interface {
	SaveJSON(ctx context.Context, key string, v any) error
	LoadJSON(ctx context.Context, key string, out any) error
}

// Scheduler drives the recurring background work: the mode tick and the
// daily notification rebuild.
//
// The rebuild runs at rebuildAt on the wall clock of the location the
// cached timings belong to, so a new location day always starts with a
// full set. It uses its own gocron scheduler, replaced whenever a rebuild
// sees timings for another zone.
type Scheduler struct {
	scheduler *gocron.Scheduler
	mode      ModeTicker
	timings   TimingsSource
	notifier  Notifier
	settings  JSONStore
	interval  time.Duration
	rebuildAt string
	timeout   time.Duration

	mu      sync.Mutex
	started bool
	daily   *gocron.Scheduler
	zone    string
}

// New creates a new Scheduler. Until timings are cached the daily rebuild
// runs in the process's local zone.
func New(ticker ModeTicker, timings TimingsSource, notifier Notifier, settings JSONStore, interval time.Duration, rebuildAt string) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		mode:      ticker,
		timings:   timings,
		notifier:  notifier,
		settings:  settings,
		interval:  interval,
		rebuildAt: rebuildAt,
		timeout:   30 * time.Second,
	}
}

// Start schedules both jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}

	if _, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Tag("mode-tick").Do(s.tick); err != nil {
		return fmt.Errorf("schedule mode tick: %w", err)
	}

	zone := ""
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	if rec, err := s.timings.LatestTimings(ctx); err == nil {
		zone = rec.Timezone
	}
	cancel()

	s.mu.Lock()
	s.started = true
	err := s.followZoneLocked(zone)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Info().Int("tickMinutes", minutes).Str("rebuildAt", s.rebuildAt).Msg("scheduler started")
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	if s.daily != nil {
		s.daily.Stop()
		s.daily = nil
	}
}

// followZoneLocked moves the daily rebuild to tz ("" is the local zone).
// Before Start it only records the zone.
func (s *Scheduler) followZoneLocked(tz string) error {
	if s.daily != nil && s.zone == tz {
		return nil
	}
	s.zone = tz
	if !s.started {
		return nil
	}

	loc := time.Local
	if tz != "" {
		loc = prayer.LoadZone(tz)
	}
	daily := gocron.NewScheduler(loc)
	if _, err := daily.Every(1).Day().At(s.rebuildAt).Tag("notification-rebuild").Do(s.dailyRebuild); err != nil {
		return fmt.Errorf("schedule notification rebuild: %w", err)
	}
	daily.StartAsync()

	if old := s.daily; old != nil {
		// The switch may happen inside the old scheduler's own job.
		go old.Stop()
	}
	s.daily = daily
	log.Info().Str("zone", loc.String()).Str("rebuildAt", s.rebuildAt).Msg("scheduler: daily notification rebuild armed")
	return nil
}

// nextRebuild returns when the daily rebuild runs next; zero before Start.
func (s *Scheduler) nextRebuild() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily == nil {
		return time.Time{}
	}
	for _, j := range s.daily.Jobs() {
		return j.NextRun()
	}
	return time.Time{}
}

// Settings returns the stored notification settings; an empty set when
// none were saved.
func (s *Scheduler) Settings(ctx context.Context) (notify.Settings, error) {
	settings := notify.Settings{}
	if err := s.settings.LoadJSON(ctx, SettingsKey, &settings); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notify.Settings{}, nil
		}
		return nil, err
	}
	return settings, nil
}

// UpdateNotifications stores settings and rebuilds the pending set from them.
func (s *Scheduler) UpdateNotifications(ctx context.Context, settings notify.Settings) (notify.Result, error) {
	if err := s.settings.SaveJSON(ctx, SettingsKey, settings); err != nil {
		return notify.Result{}, fmt.Errorf("save notification settings: %w", err)
	}
	return s.RebuildNotifications(ctx)
}

// RebuildNotifications replaces the pending set using the stored settings
// and the latest cached timings.
func (s *Scheduler) RebuildNotifications(ctx context.Context) (notify.Result, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return notify.Result{}, err
	}
	rec, err := s.timings.LatestTimings(ctx)
	if err != nil {
		if errors.Is(err, prayer.ErrCacheMiss) {
			return notify.Result{}, ErrNoTimings
		}
		return notify.Result{}, err
	}

	s.mu.Lock()
	err = s.followZoneLocked(rec.Timezone)
	s.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("zone", rec.Timezone).Msg("scheduler: cannot move daily rebuild")
	}
	return s.notifier.Schedule(ctx, settings, rec.Timings, rec.Timezone)
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ev, err := s.mode.Tick(ctx)
	if err != nil {
		if !errors.Is(err, mode.ErrSuperseded) {
			log.Error().Err(err).Msg("scheduler: mode tick failed")
		}
		return
	}
	if ev.Full {
		// A new day means new timings; the notification set follows them.
		s.rebuild()
	}
}

// dailyRebuild runs at the start of the location's day: fresh timings
// first, then the full notification set for them.
func (s *Scheduler) dailyRebuild() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	_, err := s.mode.Refresh(ctx)
	cancel()
	if err != nil && !errors.Is(err, mode.ErrSuperseded) {
		log.Warn().Err(err).Msg("scheduler: refresh before daily rebuild failed; using cached timings")
	}
	s.rebuild()
}

func (s *Scheduler) rebuild() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.RebuildNotifications(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("scheduler: notification rebuild failed")
		return
	}
	log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Int("failed", res.Failed).
		Msg("scheduler: notifications rebuilt")
}
