package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/store"
)

const (
	keyLastLocation = "location:last"
	keySchool       = "pref:school"
	keyPermPrefix   = "perm:"
)

// Preferences persists user-level settings next to the prayer cache.
type Preferences struct {
	store store.Store
}

func NewPreferences(s store.Store) *Preferences {
	return &Preferences{store: s}
}

// School returns the stored juristic school, prayer.DefaultSchool if unset.
func (p *Preferences) School(ctx context.Context) prayer.School {
	v, err := p.store.Get(ctx, keySchool)
	if err != nil {
		return prayer.DefaultSchool
	}
	n, err := strconv.Atoi(v)
	if err != nil || (n != int(prayer.Shafi) && n != int(prayer.Hanafi)) {
		return prayer.DefaultSchool
	}
	return prayer.School(n)
}

func (p *Preferences) SetSchool(ctx context.Context, s prayer.School) error {
	return p.store.Set(ctx, keySchool, strconv.Itoa(int(s)))
}

// LastLocation returns the last rounded coordinate seen.
func (p *Preferences) LastLocation(ctx context.Context) (prayer.Coordinate, bool) {
	var c prayer.Coordinate
	if err := p.LoadJSON(ctx, keyLastLocation, &c); err != nil {
		return prayer.Coordinate{}, false
	}
	return c, true
}

// SetLastLocation stores coord rounded to the cache bucket precision.
func (p *Preferences) SetLastLocation(ctx context.Context, c prayer.Coordinate) error {
	rounded := prayer.Coordinate{Latitude: round2(c.Latitude), Longitude: round2(c.Longitude)}
	return p.SaveJSON(ctx, keyLastLocation, rounded)
}

// Flag reads a boolean permission flag; unset flags are false.
func (p *Preferences) Flag(ctx context.Context, name string) bool {
	v, err := p.store.Get(ctx, keyPermPrefix+name)
	if err != nil {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func (p *Preferences) SetFlag(ctx context.Context, name string, value bool) error {
	return p.store.Set(ctx, keyPermPrefix+name, strconv.FormatBool(value))
}

// SaveJSON stores v as a JSON document under key.
func (p *Preferences) SaveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.store.Set(ctx, key, string(b))
}

// LoadJSON decodes the document under key into out. It returns
// store.ErrNotFound when the key was never written.
func (p *Preferences) LoadJSON(ctx context.Context, key string, out any) error {
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// IsNotFound reports whether err means the key was never written.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
