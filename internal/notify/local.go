package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// LocalDispatcher keeps scheduled jobs in process and fires each one once
// at its instant through a Sender.
type LocalDispatcher struct {
	cron   *gocron.Scheduler
	sender Sender

	mu         sync.Mutex
	permission PermissionStatus
	channels   map[string]Channel
	jobs       map[string]Job
}

// NewLocalDispatcher creates a dispatcher with undetermined permission and
// starts its timer loop.
func NewLocalDispatcher(sender Sender) *LocalDispatcher {
	s := gocron.NewScheduler(time.UTC)
	s.StartAsync()
	return &LocalDispatcher{
		cron:       s,
		sender:     sender,
		permission: PermissionUndetermined,
		channels:   make(map[string]Channel),
		jobs:       make(map[string]Job),
	}
}

// SetPermission records the user's answer, e.g. from the settings API.
func (d *LocalDispatcher) SetPermission(status PermissionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permission = status
}

func (d *LocalDispatcher) Permission(context.Context) (PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission, nil
}

// RequestPermission grants an undetermined permission; there is no one to
// prompt in process. An explicit denial stays denied.
func (d *LocalDispatcher) RequestPermission(context.Context) (PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission == PermissionUndetermined {
		d.permission = PermissionGranted
	}
	return d.permission, nil
}

func (d *LocalDispatcher) EnsureChannel(_ context.Context, ch Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.ID] = ch
	return nil
}

func (d *LocalDispatcher) Pending(_ context.Context, marker string) ([]Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Job, 0, len(d.jobs))
	for _, j := range d.jobs {
		if j.Marker == marker {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FireAt.Before(out[b].FireAt) })
	return out, nil
}

func (d *LocalDispatcher) Cancel(_ context.Context, jobID string) error {
	d.mu.Lock()
	_, ok := d.jobs[jobID]
	delete(d.jobs, jobID)
	d.mu.Unlock()

	if !ok {
		return nil
	}
	if err := d.cron.RemoveByTag(jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return fmt.Errorf("remove job %s: %w", jobID, err)
	}
	return nil
}

func (d *LocalDispatcher) Schedule(_ context.Context, job Job) error {
	d.mu.Lock()
	if _, ok := d.channels[job.ChannelID]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownChannel, job.ChannelID)
	}
	d.jobs[job.ID] = job
	d.mu.Unlock()

	_, err := d.cron.Every(1).Day().StartAt(job.FireAt).LimitRunsTo(1).Tag(job.ID).Do(d.fire, job.ID)
	if err != nil {
		d.mu.Lock()
		delete(d.jobs, job.ID)
		d.mu.Unlock()
		return fmt.Errorf("schedule job %s: %w", job.ID, err)
	}
	return nil
}

// Stop halts the timer loop; pending jobs are dropped.
func (d *LocalDispatcher) Stop() {
	d.cron.Stop()
}

func (d *LocalDispatcher) fire(jobID string) {
	d.mu.Lock()
	job, ok := d.jobs[jobID]
	delete(d.jobs, jobID)
	ch := d.channels[job.ChannelID]
	d.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	delivery := Delivery{Job: job, Channel: ch, SentAt: time.Now().UTC()}
	if err := d.sender.Send(ctx, delivery); err != nil {
		log.Error().Err(err).Str("job", job.ID).Str("prayer", string(job.PrayerID)).Msg("notification delivery failed")
	}
}

var _ Dispatcher = (*LocalDispatcher)(nil)
