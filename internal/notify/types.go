package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/prayer-times/internal/prayer"
)

// Marker tags every job this subsystem owns. Jobs without it are never touched.
const Marker = "prayer-times"

var (
	// ErrPermissionDenied means the dispatcher may not post notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrUnknownChannel is returned when a job references a channel that was never created.
	ErrUnknownChannel = errors.New("unknown notification channel")
	// ErrCancelFailed aborts a rebuild when part of the previous set could not be removed.
	ErrCancelFailed = errors.New("failed to cancel previous notifications")
)

// SoundMode selects how a notification alerts the user.
type SoundMode string

const (
	SoundAthan     SoundMode = "athan"
	SoundBeep      SoundMode = "beep"
	SoundVibration SoundMode = "vibration"
	SoundSilent    SoundMode = "silent"
)

// SoundModes lists every mode; each has its own channel.
var SoundModes = []SoundMode{SoundAthan, SoundBeep, SoundVibration, SoundSilent}

func ParseSoundMode(s string) (SoundMode, error) {
	for _, m := range SoundModes {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sound mode %q", s)
}

// Kind distinguishes a prayer-start alert from an end-of-window reminder.
type Kind string

const (
	KindStart    Kind = "start"
	KindReminder Kind = "reminder"
)

// Importance mirrors the OS notification importance levels.
type Importance int

const (
	ImportanceLow Importance = iota
	ImportanceDefault
	ImportanceHigh
	ImportanceMax
)

// Channel is a delivery profile shared by all jobs of one sound mode.
type Channel struct {
	ID         string     `json:"id"`
	SoundMode  SoundMode  `json:"soundMode"`
	Importance Importance `json:"importance"`
	Sound      bool       `json:"sound"`
	Vibration  bool       `json:"vibration"`
}

// ChannelFor returns the channel profile for a sound mode.
func ChannelFor(m SoundMode) Channel {
	switch m {
	case SoundAthan:
		return Channel{ID: "prayer-athan", SoundMode: m, Importance: ImportanceMax, Sound: true, Vibration: true}
	case SoundBeep:
		return Channel{ID: "prayer-beep", SoundMode: m, Importance: ImportanceHigh, Sound: true}
	case SoundVibration:
		return Channel{ID: "prayer-vibration", SoundMode: m, Importance: ImportanceHigh, Vibration: true}
	default:
		return Channel{ID: "prayer-silent", SoundMode: SoundSilent, Importance: ImportanceLow}
	}
}

// Channels returns the four channel profiles.
func Channels() []Channel {
	out := make([]Channel, 0, len(SoundModes))
	for _, m := range SoundModes {
		out = append(out, ChannelFor(m))
	}
	return out
}

// Setting is the per-prayer notification preference.
type Setting struct {
	Enabled                  bool      `json:"enabled"`
	StartNotificationEnabled bool      `json:"startNotificationEnabled"`
	EndWindowReminderEnabled bool      `json:"endWindowReminderEnabled"`
	SoundMode                SoundMode `json:"soundMode" validate:"omitempty,oneof=athan beep vibration silent"`
}

// Settings holds one Setting per prayer. A missing prayer is disabled.
type Settings map[prayer.Name]Setting

// Job is an absolute-instant notification request.
type Job struct {
	ID        string      `json:"id"`
	Marker    string      `json:"marker"`
	PrayerID  prayer.Name `json:"prayerId"`
	Kind      Kind        `json:"kind"`
	FireAt    time.Time   `json:"fireAt"`
	SoundMode SoundMode   `json:"soundMode"`
	ChannelID string      `json:"channelId"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
}

// PermissionStatus is the dispatcher's permission state.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Dispatcher is the OS-level scheduling primitive the Scheduler drives.
type Dispatcher interface {
	Permission(ctx context.Context) (PermissionStatus, error)
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	EnsureChannel(ctx context.Context, ch Channel) error
	Pending(ctx context.Context, marker string) ([]Job, error)
	Cancel(ctx context.Context, jobID string) error
	Schedule(ctx context.Context, job Job) error
}

// Delivery is what a Sender receives when a job fires.
type Delivery struct {
	Job     Job       `json:"job"`
	Channel Channel   `json:"channel"`
	SentAt  time.Time `json:"sentAt"`
}

// Sender hands a fired notification to its final transport.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}
