package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/prayer-times/internal/prayer"
)

type memFlags map[string]bool

func (m memFlags) Flag(_ context.Context, name string) bool { return m[name] }

func (m memFlags) SetFlag(_ context.Context, name string, v bool) error {
	m[name] = v
	return nil
}

func TestManualLifecycle(t *testing.T) {
	ctx := context.Background()
	flags := memFlags{}
	m := NewManual(ctx, flags)

	p, err := m.Permission(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusUndetermined, p.Status)

	_, err = m.Current(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Error(t, m.Set(ctx, prayer.Coordinate{Latitude: 120}))

	c := prayer.Coordinate{Latitude: 21.4225, Longitude: 39.8262}
	require.NoError(t, m.Set(ctx, c))
	got, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.True(t, flags[permissionFlag])

	require.NoError(t, m.Revoke(ctx))
	_, err = m.Current(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, flags[permissionFlag])
}

func TestManualRestoresGrantedFlag(t *testing.T) {
	ctx := context.Background()
	m := NewManual(ctx, memFlags{permissionFlag: true})

	p, err := m.Request(ctx)
	require.NoError(t, err)
	assert.True(t, p.Granted())

	_, err = m.Current(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}
