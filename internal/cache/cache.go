package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/store"
)

const (
	keyValidated = "prayer:validated"
	keyRaw       = "prayer:raw"
	keyTimings   = "prayer:timings"
	keyLookup    = "prayer:lookup:"
)

// LocationHash rounds a coordinate to two decimals (about 1.1 km) so that
// nearby reads share one cache entry.
func LocationHash(c prayer.Coordinate) string {
	return fmt.Sprintf("%.2f,%.2f", round2(c.Latitude), round2(c.Longitude))
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // avoid "-0.00"
	}
	return r
}

type validatedEntry struct {
	Date         string        `json:"date"`
	LocationHash string        `json:"locationHash"`
	School       prayer.School `json:"school"`
	Payload      prayer.Day    `json:"payload"`
	WrittenAt    time.Time  `json:"writtenAt"`
}

// PrayerCache implements prayer.Cache on top of a key-value store.
type PrayerCache struct {
	store store.Store
	now   func() time.Time
}

// New creates a PrayerCache.
func New(s store.Store) *PrayerCache {
	return &PrayerCache{store: s, now: time.Now}
}

// Get returns the validated entry when the date, the location bucket and
// the school all match; any mismatch is prayer.ErrCacheMiss.
func (c *PrayerCache) Get(ctx context.Context, coord prayer.Coordinate, school prayer.School, date string) (prayer.Day, error) {
	return c.get(ctx, keyValidated, coord, school, date)
}

// Put writes the validated entry and the raw entry.
func (c *PrayerCache) Put(ctx context.Context, coord prayer.Coordinate, school prayer.School, date string, day prayer.Day) error {
	e := c.entry(coord, school, date, day)
	if err := c.save(ctx, keyValidated, e); err != nil {
		return err
	}
	return c.save(ctx, keyRaw, e.Payload)
}

// GetLookup reads the entry of a one-off query for a place other than the
// device location. These entries are keyed per location bucket and school.
func (c *PrayerCache) GetLookup(ctx context.Context, coord prayer.Coordinate, school prayer.School, date string) (prayer.Day, error) {
	return c.get(ctx, lookupKey(coord, school), coord, school, date)
}

// PutLookup stores a one-off query result. It never touches the validated,
// raw or full-timings records.
func (c *PrayerCache) PutLookup(ctx context.Context, coord prayer.Coordinate, school prayer.School, date string, day prayer.Day) error {
	return c.save(ctx, lookupKey(coord, school), c.entry(coord, school, date, day))
}

func lookupKey(coord prayer.Coordinate, school prayer.School) string {
	return fmt.Sprintf("%s%s:%d", keyLookup, LocationHash(coord), school)
}

func (c *PrayerCache) get(ctx context.Context, key string, coord prayer.Coordinate, school prayer.School, date string) (prayer.Day, error) {
	var e validatedEntry
	if err := c.load(ctx, key, &e); err != nil {
		return prayer.Day{}, err
	}
	if e.Date != date || e.LocationHash != LocationHash(coord) || e.School != school {
		return prayer.Day{}, prayer.ErrCacheMiss
	}
	return e.Payload, nil
}

func (c *PrayerCache) entry(coord prayer.Coordinate, school prayer.School, date string, day prayer.Day) validatedEntry {
	hash := LocationHash(coord)
	day.Date = date
	day.LocationHash = hash
	return validatedEntry{Date: date, LocationHash: hash, School: school, Payload: day, WrittenAt: c.now().UTC()}
}

// GetRaw returns whatever day was written last, however stale.
func (c *PrayerCache) GetRaw(ctx context.Context) (prayer.Day, error) {
	var day prayer.Day
	if err := c.load(ctx, keyRaw, &day); err != nil {
		return prayer.Day{}, err
	}
	return day, nil
}

// PutTimings stores the full-timings record used for notification rebuilds.
func (c *PrayerCache) PutTimings(ctx context.Context, rec prayer.TimingsRecord) error {
	return c.save(ctx, keyTimings, rec)
}

// GetTimings returns the last full-timings record without date checks.
func (c *PrayerCache) GetTimings(ctx context.Context) (prayer.TimingsRecord, error) {
	var rec prayer.TimingsRecord
	if err := c.load(ctx, keyTimings, &rec); err != nil {
		return prayer.TimingsRecord{}, err
	}
	return rec, nil
}

func (c *PrayerCache) load(ctx context.Context, key string, out any) error {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return prayer.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// A record we cannot decode is as good as absent.
		return fmt.Errorf("%w: decode %s: %v", prayer.ErrCacheMiss, key, err)
	}
	return nil
}

func (c *PrayerCache) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

var _ prayer.Cache = (*PrayerCache)(nil)
