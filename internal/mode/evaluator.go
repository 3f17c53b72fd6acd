package mode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/prayer-times/internal/location"
	"github.com/i474232898/prayer-times/internal/prayer"
)

// ErrSuperseded is returned by an evaluation whose result was discarded
// because a newer evaluation started while it was in flight.
var ErrSuperseded = errors.New("evaluation superseded")

// Times is the prayer data the evaluator reads.
type Times interface {
	Times(ctx context.Context, coord prayer.Coordinate, school prayer.School) (prayer.Day, error)
	Refresh(ctx context.Context, coord prayer.Coordinate, school prayer.School) (prayer.Day, error)
	Raw(ctx context.Context) (prayer.Day, error)
	Next(day prayer.Day) (prayer.Upcoming, error)
}

// Preferences holds the persisted inputs of an evaluation.
type Preferences interface {
	School(ctx context.Context) prayer.School
	LastLocation(ctx context.Context) (prayer.Coordinate, bool)
	SetLastLocation(ctx context.Context, c prayer.Coordinate) error
}

// Evaluation is the outcome of one evaluation cycle.
type Evaluation struct {
	Mode              Mode               `json:"mode"`
	PermissionGranted bool               `json:"permissionGranted"`
	Location          *prayer.Coordinate `json:"location,omitempty"`
	Next              *prayer.Upcoming   `json:"next,omitempty"`
	Day               *prayer.Day        `json:"day,omitempty"`
	Degraded          bool               `json:"degraded"`
	Full              bool               `json:"full"`
	EvaluatedAt       time.Time          `json:"evaluatedAt"`
}

// Evaluator combines live inputs (permission, location, prayer data) into
// the automatic mode and publishes it to State.
//
// Evaluations can overlap (timer, foreground, manual refresh). Each one
// takes a generation number and only the newest may publish.
type Evaluator struct {
	state    *State
	location location.Provider
	times    Times
	prefs    Preferences
	now      func() time.Time

	generation atomic.Uint64

	// publish orders the generation check with ApplyAutomatic. Subscribers
	// run under it, so they may read Last but must not start an evaluation.
	publish sync.Mutex

	mu       sync.Mutex
	lastDate string
	last     Evaluation
}

func NewEvaluator(state *State, loc location.Provider, times Times, prefs Preferences) *Evaluator {
	return &Evaluator{
		state:    state,
		location: loc,
		times:    times,
		prefs:    prefs,
		now:      time.Now,
	}
}

// WithClock replaces the evaluator clock.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// State returns the mode state this evaluator publishes to.
func (e *Evaluator) State() *State { return e.state }

// Last returns the last published evaluation.
func (e *Evaluator) Last() Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Evaluate re-derives the mode from cached prayer data.
func (e *Evaluator) Evaluate(ctx context.Context) (Evaluation, error) {
	return e.run(ctx, false)
}

// Refresh re-fetches location and prayer data before deciding.
func (e *Evaluator) Refresh(ctx context.Context) (Evaluation, error) {
	return e.run(ctx, true)
}

// Tick is the periodic re-evaluation. A changed calendar date forces a
// full refresh.
func (e *Evaluator) Tick(ctx context.Context) (Evaluation, error) {
	return e.run(ctx, e.dateChanged())
}

// Foreground handles the app returning to the foreground.
func (e *Evaluator) Foreground(ctx context.Context) (Evaluation, error) {
	full := e.dateChanged()
	if full {
		log.Info().Msg("calendar date changed since last evaluation; running full refresh")
	}
	return e.run(ctx, full)
}

func (e *Evaluator) dateChanged() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDate != "" && e.lastDate != e.localDate()
}

func (e *Evaluator) localDate() string {
	return e.now().Local().Format("2006-01-02")
}

func (e *Evaluator) run(ctx context.Context, full bool) (Evaluation, error) {
	gen := e.generation.Add(1)

	ev := Evaluation{Full: full, EvaluatedAt: e.now().UTC()}

	perm, err := e.location.Permission(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("location permission query failed")
	}
	ev.PermissionGranted = err == nil && perm.Granted()

	if ev.PermissionGranted {
		if coord, ok := e.currentLocation(ctx); ok {
			ev.Location = &coord
			e.attachSchedule(ctx, &ev, coord, full)
		}
	} else {
		// Show the last known schedule, but the mode stays Day.
		if day, err := e.times.Raw(ctx); err == nil {
			ev.Day = &day
			ev.Degraded = true
		}
	}

	var next *prayer.Name
	if ev.Next != nil {
		n := ev.Next.Name
		next = &n
	}
	ev.Mode = Resolve(ev.PermissionGranted, ev.Location, next)

	e.publish.Lock()
	defer e.publish.Unlock()
	if gen != e.generation.Load() {
		log.Debug().Uint64("generation", gen).Msg("discarding superseded mode evaluation")
		return ev, ErrSuperseded
	}
	e.mu.Lock()
	e.lastDate = e.localDate()
	e.last = ev
	e.mu.Unlock()
	e.state.ApplyAutomatic(ev.Mode)

	log.Debug().Str("mode", string(ev.Mode)).Bool("full", full).Bool("degraded", ev.Degraded).Msg("mode evaluated")
	return ev, nil
}

func (e *Evaluator) currentLocation(ctx context.Context) (prayer.Coordinate, bool) {
	coord, err := e.location.Current(ctx)
	if err == nil {
		if err := e.prefs.SetLastLocation(ctx, coord); err != nil {
			log.Warn().Err(err).Msg("failed to persist last location")
		}
		return coord, true
	}
	log.Debug().Err(err).Msg("current location unavailable; using last known")
	return e.prefs.LastLocation(ctx)
}

func (e *Evaluator) attachSchedule(ctx context.Context, ev *Evaluation, coord prayer.Coordinate, full bool) {
	school := e.prefs.School(ctx)

	var (
		day prayer.Day
		err error
	)
	if full {
		day, err = e.times.Refresh(ctx, coord, school)
	} else {
		day, err = e.times.Times(ctx, coord, school)
	}
	if err != nil {
		log.Warn().Err(err).Bool("full", full).Msg("prayer times unavailable for mode evaluation")
		if raw, rawErr := e.times.Raw(ctx); rawErr == nil {
			day, err = raw, nil
			ev.Degraded = true
		}
	}
	if err != nil {
		return
	}
	ev.Day = &day

	up, err := e.times.Next(day)
	if err != nil {
		log.Warn().Err(err).Msg("cannot compute next prayer")
		return
	}
	ev.Next = &up
}
