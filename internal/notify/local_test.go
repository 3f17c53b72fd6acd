package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/prayer-times/internal/prayer"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Delivery
}

func (r *recordingSender) Send(_ context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, d)
	return nil
}

func TestLocalDispatcherPermission(t *testing.T) {
	d := NewLocalDispatcher(LogSender{})
	defer d.Stop()
	ctx := context.Background()

	st, _ := d.Permission(ctx)
	assert.Equal(t, PermissionUndetermined, st)
	st, _ = d.RequestPermission(ctx)
	assert.Equal(t, PermissionGranted, st)

	d.SetPermission(PermissionDenied)
	st, _ = d.RequestPermission(ctx)
	assert.Equal(t, PermissionDenied, st)
}

func TestLocalDispatcherScheduleCancel(t *testing.T) {
	d := NewLocalDispatcher(LogSender{})
	defer d.Stop()
	ctx := context.Background()

	job := Job{ID: "a", Marker: Marker, PrayerID: prayer.Asr, Kind: KindStart,
		FireAt: time.Now().Add(6 * time.Hour), ChannelID: "prayer-beep"}

	assert.ErrorIs(t, d.Schedule(ctx, job), ErrUnknownChannel)

	require.NoError(t, d.EnsureChannel(ctx, ChannelFor(SoundBeep)))
	require.NoError(t, d.Schedule(ctx, job))
	other := job
	other.ID, other.Marker = "b", "elsewhere"
	require.NoError(t, d.Schedule(ctx, other))

	pending, err := d.Pending(ctx, Marker)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ID)

	require.NoError(t, d.Cancel(ctx, "a"))
	require.NoError(t, d.Cancel(ctx, "a"), "cancelling twice is a no-op")
	pending, _ = d.Pending(ctx, Marker)
	assert.Empty(t, pending)
}

func TestLocalDispatcherFireDeliversOnce(t *testing.T) {
	rec := &recordingSender{}
	d := NewLocalDispatcher(rec)
	defer d.Stop()
	ctx := context.Background()

	require.NoError(t, d.EnsureChannel(ctx, ChannelFor(SoundAthan)))
	require.NoError(t, d.Schedule(ctx, Job{ID: "f", Marker: Marker, PrayerID: prayer.Fajr,
		FireAt: time.Now().Add(time.Hour), ChannelID: "prayer-athan"}))

	d.fire("f")
	d.fire("f")

	require.Len(t, rec.sent, 1)
	assert.Equal(t, prayer.Fajr, rec.sent[0].Job.PrayerID)
	assert.Equal(t, ImportanceMax, rec.sent[0].Channel.Importance)

	pending, _ := d.Pending(ctx, Marker)
	assert.Empty(t, pending)
}

func TestLocalDispatcherFiresAtInstant(t *testing.T) {
	rec := &recordingSender{}
	d := NewLocalDispatcher(rec)
	defer d.Stop()
	ctx := context.Background()

	require.NoError(t, d.EnsureChannel(ctx, ChannelFor(SoundBeep)))
	require.NoError(t, d.Schedule(ctx, Job{ID: "soon", Marker: Marker, PrayerID: prayer.Maghrib,
		Kind: KindStart, FireAt: time.Now().Add(time.Second), ChannelID: "prayer-beep"}))

	count := func() int {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sent)
	}
	require.Eventually(t, func() bool { return count() == 1 }, 5*time.Second, 50*time.Millisecond)

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 1, count(), "a job fires exactly once")

	pending, err := d.Pending(ctx, Marker)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
