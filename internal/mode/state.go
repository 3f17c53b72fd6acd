package mode

import (
	"fmt"
	"strings"
	"sync"

	"github.com/i474232898/prayer-times/internal/prayer"
)

// Mode is the presentation mode derived from the prayer schedule.
type Mode string

const (
	Day     Mode = "day"
	Evening Mode = "evening"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Day:
		return Day, nil
	case Evening:
		return Evening, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Resolve is the pure day/evening decision. Evening covers the
// Maghrib-to-Isha and Isha-to-Fajr windows, i.e. whenever the next prayer
// is Isha or Fajr. Missing permission, location or schedule mean Day.
func Resolve(permissionGranted bool, loc *prayer.Coordinate, next *prayer.Name) Mode {
	if !permissionGranted || loc == nil || next == nil {
		return Day
	}
	if *next == prayer.Fajr || *next == prayer.Isha {
		return Evening
	}
	return Day
}

// Snapshot is a consistent view of the mode state.
type Snapshot struct {
	Automatic Mode  `json:"automatic"`
	Override  *Mode `json:"override,omitempty"`
	Effective Mode  `json:"effective"`
}

// State owns the automatic mode and the volatile manual override.
// The override is never persisted and is dropped by every automatic run.
type State struct {
	mu        sync.RWMutex
	automatic Mode
	override  *Mode
	subs      map[int]func(Snapshot)
	nextSub   int
}

func NewState() *State {
	return &State{automatic: Day, subs: make(map[int]func(Snapshot))}
}

// Effective returns override ?? automatic.
func (s *State) Effective() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective()
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// ApplyAutomatic publishes a freshly resolved mode and clears the override.
func (s *State) ApplyAutomatic(m Mode) {
	s.update(func() {
		s.automatic = m
		s.override = nil
	})
}

// SetOverride sets the manual preview mode.
func (s *State) SetOverride(m Mode) {
	s.update(func() {
		s.override = &m
	})
}

// ClearOverride drops the manual preview mode.
func (s *State) ClearOverride() {
	s.update(func() {
		s.override = nil
	})
}

// Subscribe registers fn for every change and returns an unsubscribe func.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *State) update(mutate func()) {
	s.mu.Lock()
	mutate()
	snap := s.snapshot()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *State) effective() Mode {
	if s.override != nil {
		return *s.override
	}
	return s.automatic
}

func (s *State) snapshot() Snapshot {
	snap := Snapshot{Automatic: s.automatic, Effective: s.effective()}
	if s.override != nil {
		o := *s.override
		snap.Override = &o
	}
	return snap
}
