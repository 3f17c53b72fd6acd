package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/store"
)

type stubProvider struct {
	name  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(context.Context, prayer.Coordinate) (Reading, error) {
	s.calls++
	if s.err != nil {
		return Reading{}, s.err
	}
	return Reading{Provider: s.name, Temperature: 21, Condition: ConditionClear}, nil
}

var cairo = prayer.Coordinate{Latitude: 30.0444, Longitude: 31.2357}

func TestCurrentFallsThroughToSecondProvider(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("down")}
	second := &stubProvider{name: "second"}

	r, err := NewService(nil, []Provider{first, second}).Current(context.Background(), cairo)
	require.NoError(t, err)
	assert.Equal(t, "second", r.Provider)
	assert.Equal(t, cairo, r.Coordinate)
}

func TestCurrentAllFail(t *testing.T) {
	svc := NewService(nil, []Provider{&stubProvider{name: "a", err: errors.New("x")}})
	_, err := svc.Current(context.Background(), cairo)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewService(nil, nil).Current(context.Background(), cairo)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestCurrentServedFromStoreUntilStale(t *testing.T) {
	p := &stubProvider{name: "p"}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store.NewMemoryStore(), []Provider{p}).WithClock(func() time.Time { return now })

	_, err := svc.Current(context.Background(), cairo)
	require.NoError(t, err)
	_, err = svc.Current(context.Background(), prayer.Coordinate{Latitude: 30.0401, Longitude: 31.2388})
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	now = now.Add(DefaultMaxAge + time.Minute)
	_, err = svc.Current(context.Background(), cairo)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}
