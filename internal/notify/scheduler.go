package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/prayer-times/internal/prayer"
)

const (
	// MinLead is how far in the future a job must be to get scheduled.
	MinLead = 5 * time.Second
	// ReminderOffset is how long before the next prayer the end-of-window reminder fires.
	ReminderOffset = 20 * time.Minute
)

// Result summarises one scheduling run.
type Result struct {
	Created          int  `json:"created"`
	Skipped          int  `json:"skipped"`
	Failed           int  `json:"failed"`
	Cancelled        int  `json:"cancelled"`
	PermissionNeeded bool `json:"permissionNeeded"`
}

// Scheduler rebuilds the full set of prayer notifications on every call.
// There is no incremental update: the previous set is cancelled, the new
// set is planned in memory and then committed.
type Scheduler struct {
	dispatcher Dispatcher
	now        func() time.Time

	// mu serialises runs so the newest call's set is the one left behind.
	mu sync.Mutex
}

func NewScheduler(d Dispatcher) *Scheduler {
	return &Scheduler{dispatcher: d, now: time.Now}
}

// WithClock replaces the scheduler clock.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Schedule replaces every pending prayer notification with the jobs
// derived from settings and timings (wall-clock times in tz).
func (s *Scheduler) Schedule(ctx context.Context, settings Settings, timings prayer.TimingSet, tz string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensurePermission(ctx); err != nil {
		return Result{PermissionNeeded: true}, err
	}

	for _, ch := range Channels() {
		if err := s.dispatcher.EnsureChannel(ctx, ch); err != nil {
			return Result{}, fmt.Errorf("create channel %s: %w", ch.ID, err)
		}
	}

	var res Result
	cancelled, err := s.cancelAll(ctx)
	res.Cancelled = cancelled
	if err != nil {
		return res, err
	}

	jobs, skipped, err := Plan(settings, timings, tz, s.now())
	res.Skipped = skipped
	if err != nil {
		return res, err
	}

	for _, job := range jobs {
		if err := s.dispatcher.Schedule(ctx, job); err != nil {
			res.Failed++
			log.Error().Err(err).Str("prayer", string(job.PrayerID)).Str("kind", string(job.Kind)).
				Time("fireAt", job.FireAt).Msg("failed to schedule notification")
			continue
		}
		res.Created++
	}

	log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Int("failed", res.Failed).
		Int("cancelled", res.Cancelled).Str("timezone", tz).Msg("prayer notifications rebuilt")
	return res, nil
}

// CancelAll removes every pending job carrying Marker.
func (s *Scheduler) CancelAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelAll(ctx)
}

// Pending lists the jobs currently scheduled by this subsystem.
func (s *Scheduler) Pending(ctx context.Context) ([]Job, error) {
	return s.dispatcher.Pending(ctx, Marker)
}

func (s *Scheduler) ensurePermission(ctx context.Context) error {
	status, err := s.dispatcher.Permission(ctx)
	if err != nil {
		return fmt.Errorf("query notification permission: %w", err)
	}
	if status == PermissionUndetermined {
		status, err = s.dispatcher.RequestPermission(ctx)
		if err != nil {
			return fmt.Errorf("request notification permission: %w", err)
		}
	}
	if status != PermissionGranted {
		return ErrPermissionDenied
	}
	return nil
}

func (s *Scheduler) cancelAll(ctx context.Context) (int, error) {
	pending, err := s.dispatcher.Pending(ctx, Marker)
	if err != nil {
		return 0, fmt.Errorf("list pending notifications: %w", err)
	}
	n := 0
	var errs []error
	for _, job := range pending {
		if job.Marker != Marker {
			continue
		}
		if err := s.dispatcher.Cancel(ctx, job.ID); err != nil {
			log.Warn().Err(err).Str("job", job.ID).Msg("failed to cancel notification")
			errs = append(errs, fmt.Errorf("cancel %s: %w", job.ID, err))
			continue
		}
		n++
	}
	if len(errs) > 0 {
		// A surviving job would fire next to its replacement.
		return n, errors.Join(append([]error{ErrCancelFailed}, errs...)...)
	}
	return n, nil
}

// Plan derives the jobs for settings and timings without side effects.
// Jobs firing within MinLead of now, or in the past, are counted as skipped.
func Plan(settings Settings, timings prayer.TimingSet, tz string, now time.Time) ([]Job, int, error) {
	clock := prayer.NewZoneClock(tz, now)
	instants, err := clock.Instants(timings)
	if err != nil {
		return nil, 0, fmt.Errorf("parse timings: %w", err)
	}

	cutoff := now.Add(MinLead)
	var (
		jobs    []Job
		skipped int
	)
	add := func(j Job) {
		if !j.FireAt.After(cutoff) {
			skipped++
			log.Debug().Str("prayer", string(j.PrayerID)).Str("kind", string(j.Kind)).
				Time("fireAt", j.FireAt).Msg("skipping past-due notification")
			return
		}
		jobs = append(jobs, j)
	}

	for i, name := range prayer.Obligatory {
		st, ok := settings[name]
		if !ok || !st.Enabled {
			continue
		}
		mode := st.SoundMode
		if mode == "" {
			mode = SoundAthan
		}

		if st.StartNotificationEnabled {
			add(Job{
				ID:        uuid.NewString(),
				Marker:    Marker,
				PrayerID:  name,
				Kind:      KindStart,
				FireAt:    instants[name],
				SoundMode: mode,
				ChannelID: ChannelFor(mode).ID,
				Title:     string(name),
				Body:      fmt.Sprintf("It is time for %s (%s)", name, timings[name]),
			})
		}

		if st.EndWindowReminderEnabled {
			if i+1 >= len(prayer.Obligatory) {
				// Isha's window has no successor in the list.
				log.Debug().Str("prayer", string(name)).Msg("no end-of-window reminder for last prayer")
				continue
			}
			next := prayer.Obligatory[i+1]
			add(Job{
				ID:        uuid.NewString(),
				Marker:    Marker,
				PrayerID:  name,
				Kind:      KindReminder,
				FireAt:    instants[next].Add(-ReminderOffset),
				SoundMode: SoundBeep,
				ChannelID: ChannelFor(SoundBeep).ID,
				Title:     fmt.Sprintf("%s ends soon", name),
				Body:      fmt.Sprintf("%s begins at %s", next, timings[next]),
			})
		}
	}
	return jobs, skipped, nil
}
