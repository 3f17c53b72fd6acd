package location

import (
	"context"
	"errors"
	"sync"

	"github.com/i474232898/prayer-times/internal/prayer"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
)

// Status is the location permission state.
type Status string

const (
	StatusGranted      Status = "granted"
	StatusDenied       Status = "denied"
	StatusUndetermined Status = "undetermined"
)

// Permission is the answer of a permission query or request.
type Permission struct {
	Status      Status `json:"status"`
	CanAskAgain bool   `json:"canAskAgain"`
}

// Granted is shorthand for Status == StatusGranted.
func (p Permission) Granted() bool { return p.Status == StatusGranted }

// Provider exposes the device's permission state and coordinates.
type Provider interface {
	Permission(ctx context.Context) (Permission, error)
	Request(ctx context.Context) (Permission, error)
	Current(ctx context.Context) (prayer.Coordinate, error)
}

// FlagStore persists the permission flag between restarts.
type FlagStore interface {
	Flag(ctx context.Context, name string) bool
	SetFlag(ctx context.Context, name string, value bool) error
}

const permissionFlag = "location"

// Manual is a Provider fed by explicit updates: the client pushes its
// coordinate and may revoke access at any time.
type Manual struct {
	flags FlagStore

	mu     sync.RWMutex
	coord  *prayer.Coordinate
	status Status
}

// NewManual creates a provider. flags may be nil; when set, a previously
// granted permission is restored.
func NewManual(ctx context.Context, flags FlagStore) *Manual {
	m := &Manual{flags: flags, status: StatusUndetermined}
	if flags != nil && flags.Flag(ctx, permissionFlag) {
		m.status = StatusGranted
	}
	return m
}

// Set records a new coordinate and grants permission.
func (m *Manual) Set(ctx context.Context, c prayer.Coordinate) error {
	if !c.Valid() {
		return errors.New("invalid coordinate")
	}
	m.mu.Lock()
	m.coord = &c
	m.status = StatusGranted
	m.mu.Unlock()
	return m.persist(ctx, true)
}

// Revoke denies access and forgets the coordinate.
func (m *Manual) Revoke(ctx context.Context) error {
	m.mu.Lock()
	m.coord = nil
	m.status = StatusDenied
	m.mu.Unlock()
	return m.persist(ctx, false)
}

func (m *Manual) Permission(context.Context) (Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Permission{Status: m.status, CanAskAgain: true}, nil
}

// Request cannot prompt anyone; it reports the current state.
func (m *Manual) Request(ctx context.Context) (Permission, error) {
	return m.Permission(ctx)
}

func (m *Manual) Current(context.Context) (prayer.Coordinate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == StatusDenied {
		return prayer.Coordinate{}, ErrPermissionDenied
	}
	if m.coord == nil {
		return prayer.Coordinate{}, ErrUnavailable
	}
	return *m.coord, nil
}

func (m *Manual) persist(ctx context.Context, granted bool) error {
	if m.flags == nil {
		return nil
	}
	return m.flags.SetFlag(ctx, permissionFlag, granted)
}

var _ Provider = (*Manual)(nil)
