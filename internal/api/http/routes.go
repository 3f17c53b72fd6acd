package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/prayer-times/internal/location"
	"github.com/i474232898/prayer-times/internal/mode"
	"github.com/i474232898/prayer-times/internal/notify"
	"github.com/i474232898/prayer-times/internal/prayer"
	"github.com/i474232898/prayer-times/internal/scheduler"
	"github.com/i474232898/prayer-times/internal/weather"
)

var validate = validator.New()

// PrayerTimes is the prayer data surface.
type PrayerTimes interface {
	Times(ctx context.Context, coord prayer.Coordinate, school prayer.School) (prayer.Day, error)
	Refresh(ctx context.Context, coord prayer.Coordinate, school prayer.School) (prayer.Day, error)
	Lookup(ctx context.Context, coord prayer.Coordinate, school prayer.School, refresh bool) (prayer.Day, error)
	Raw(ctx context.Context) (prayer.Day, error)
	Next(day prayer.Day) (prayer.Upcoming, error)
}

// Locator is the location provider fed by clients.
type Locator interface {
	location.Provider
	Set(ctx context.Context, c prayer.Coordinate) error
	Revoke(ctx context.Context) error
}

// Preferences holds user-level settings.
type Preferences interface {
	School(ctx context.Context) prayer.School
	SetSchool(ctx context.Context, s prayer.School) error
	LastLocation(ctx context.Context) (prayer.Coordinate, bool)
}

// Notifications manages the persisted settings and the pending set.
type Notifications interface {
	Settings(ctx context.Context) (notify.Settings, error)
	UpdateNotifications(ctx context.Context, settings notify.Settings) (notify.Result, error)
	RebuildNotifications(ctx context.Context) (notify.Result, error)
}

// PendingJobs lists and cancels scheduled notifications.
type PendingJobs interface {
	Pending(ctx context.Context) ([]notify.Job, error)
	CancelAll(ctx context.Context) (int, error)
}

// PermissionSetter records the notification permission answer.
type PermissionSetter interface {
	Permission(ctx context.Context) (notify.PermissionStatus, error)
	SetPermission(status notify.PermissionStatus)
}

// Weather returns current conditions.
type Weather interface {
	Current(ctx context.Context, c prayer.Coordinate) (weather.Reading, error)
}

// Deps are the components the routes drive.
type Deps struct {
	Prayer        PrayerTimes
	Evaluator     *mode.Evaluator
	Location      Locator
	Preferences   Preferences
	Notifications Notifications
	Pending       PendingJobs
	Permission    PermissionSetter
	Weather       Weather
}

// NewApp builds the Fiber app with the centralized error handler.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "prayer-times",
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/prayer/times", func(c *fiber.Ctx) error {
		day, err := d.prayerDay(c, c.QueryBool("refresh"))
		if err != nil {
			return err
		}
		return c.JSON(day)
	})

	v1.Get("/prayer/times/raw", func(c *fiber.Ctx) error {
		day, err := d.Prayer.Raw(c.UserContext())
		if err != nil {
			return prayerError(err)
		}
		return c.JSON(day)
	})

	v1.Get("/prayer/next", func(c *fiber.Ctx) error {
		day, err := d.prayerDay(c, false)
		if err != nil {
			return err
		}
		next, err := d.Prayer.Next(day)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return c.JSON(fiber.Map{
			"next":     next,
			"timezone": day.Timezone,
			"city":     day.City,
		})
	})

	v1.Get("/mode", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"state":      d.Evaluator.State().Snapshot(),
			"evaluation": d.Evaluator.Last(),
		})
	})

	v1.Put("/mode/override", func(c *fiber.Ctx) error {
		var req overrideRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		m, err := mode.ParseMode(req.Mode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		d.Evaluator.State().SetOverride(m)
		return c.JSON(d.Evaluator.State().Snapshot())
	})

	v1.Delete("/mode/override", func(c *fiber.Ctx) error {
		d.Evaluator.State().ClearOverride()
		return c.JSON(d.Evaluator.State().Snapshot())
	})

	v1.Post("/mode/refresh", func(c *fiber.Ctx) error {
		return d.evaluation(c, d.Evaluator.Refresh)
	})

	v1.Post("/lifecycle/foreground", func(c *fiber.Ctx) error {
		return d.evaluation(c, d.Evaluator.Foreground)
	})

	v1.Get("/location/permission", func(c *fiber.Ctx) error {
		p, err := d.Location.Permission(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(p)
	})

	v1.Put("/location", func(c *fiber.Ctx) error {
		var req coordinateRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		if err := d.Location.Set(c.UserContext(), req.coordinate()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return d.evaluation(c, d.Evaluator.Evaluate)
	})

	v1.Delete("/location", func(c *fiber.Ctx) error {
		if err := d.Location.Revoke(c.UserContext()); err != nil {
			return err
		}
		return d.evaluation(c, d.Evaluator.Evaluate)
	})

	v1.Get("/preferences/school", func(c *fiber.Ctx) error {
		s := d.Preferences.School(c.UserContext())
		return c.JSON(fiber.Map{"school": s.String(), "value": int(s)})
	})

	v1.Put("/preferences/school", func(c *fiber.Ctx) error {
		var req schoolRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		s, err := prayer.ParseSchool(req.School)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := d.Preferences.SetSchool(c.UserContext(), s); err != nil {
			return err
		}
		// The validated entry was computed for the old school.
		return d.evaluation(c, d.Evaluator.Refresh)
	})

	v1.Get("/notifications", func(c *fiber.Ctx) error {
		settings, err := d.Notifications.Settings(c.UserContext())
		if err != nil {
			return err
		}
		pending, err := d.Pending.Pending(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"settings": settings, "pending": pending})
	})

	v1.Post("/notifications", func(c *fiber.Ctx) error {
		var req map[string]notify.Setting
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		settings, err := toSettings(req)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := d.Notifications.UpdateNotifications(c.UserContext(), settings)
		return notificationResult(c, res, err)
	})

	v1.Post("/notifications/rebuild", func(c *fiber.Ctx) error {
		res, err := d.Notifications.RebuildNotifications(c.UserContext())
		return notificationResult(c, res, err)
	})

	v1.Delete("/notifications", func(c *fiber.Ctx) error {
		n, err := d.Pending.CancelAll(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"cancelled": n})
	})

	v1.Get("/notifications/permission", func(c *fiber.Ctx) error {
		st, err := d.Permission.Permission(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": st})
	})

	v1.Put("/notifications/permission", func(c *fiber.Ctx) error {
		var req permissionRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		d.Permission.SetPermission(notify.PermissionStatus(req.Status))
		return c.JSON(fiber.Map{"status": req.Status})
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		if d.Weather == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "weather is not configured")
		}
		coord, _, err := d.coordinate(c)
		if err != nil {
			return err
		}
		r, err := d.Weather.Current(c.UserContext(), coord)
		if err != nil {
			if errors.Is(err, weather.ErrUnavailable) {
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
			return err
		}
		return c.JSON(r)
	})
}

type overrideRequest struct {
	Mode string `json:"mode" validate:"required,oneof=day evening"`
}

type coordinateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (r coordinateRequest) coordinate() prayer.Coordinate {
	return prayer.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

type schoolRequest struct {
	School string `json:"school" validate:"required"`
}

type permissionRequest struct {
	Status string `json:"status" validate:"required,oneof=granted denied undetermined"`
}

// locationQuery holds the optional coordinate query parameters.
type locationQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// coordinate reads lat/lon from the query, or falls back to the current
// location and then to the last known one. explicit reports whether the
// coordinate came from the query.
func (d Deps) coordinate(c *fiber.Ctx) (prayer.Coordinate, bool, error) {
	lat, lon := c.Query("lat"), c.Query("lon")
	if lat != "" || lon != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		lo, errLon := strconv.ParseFloat(lon, 64)
		if errLat != nil || errLon != nil {
			return prayer.Coordinate{}, true, fiber.NewError(fiber.StatusBadRequest, "lat and lon must both be numbers")
		}
		q := locationQuery{Latitude: la, Longitude: lo}
		if err := validate.Struct(q); err != nil {
			return prayer.Coordinate{}, true, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return prayer.Coordinate{Latitude: la, Longitude: lo}, true, nil
	}

	ctx := c.UserContext()
	if coord, err := d.Location.Current(ctx); err == nil {
		return coord, false, nil
	}
	if coord, ok := d.Preferences.LastLocation(ctx); ok {
		return coord, false, nil
	}
	return prayer.Coordinate{}, false, fiber.NewError(fiber.StatusBadRequest, "no location: pass lat and lon or set a location")
}

// school returns the requested school and whether it differs from the
// stored preference.
func (d Deps) school(c *fiber.Ctx) (prayer.School, bool, error) {
	pref := d.Preferences.School(c.UserContext())
	v := c.Query("school")
	if v == "" {
		return pref, false, nil
	}
	s, err := prayer.ParseSchool(v)
	if err != nil {
		return 0, false, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return s, s != pref, nil
}

// prayerDay serves the device location with the preferred school from the
// shared records. Explicit coordinates or another school go through Lookup
// so they never replace what mode evaluation and notifications read.
func (d Deps) prayerDay(c *fiber.Ctx, refresh bool) (prayer.Day, error) {
	coord, explicit, err := d.coordinate(c)
	if err != nil {
		return prayer.Day{}, err
	}
	school, otherSchool, err := d.school(c)
	if err != nil {
		return prayer.Day{}, err
	}

	ctx := c.UserContext()
	var day prayer.Day
	switch {
	case explicit || otherSchool:
		day, err = d.Prayer.Lookup(ctx, coord, school, refresh)
	case refresh:
		day, err = d.Prayer.Refresh(ctx, coord, school)
	default:
		day, err = d.Prayer.Times(ctx, coord, school)
	}
	if err != nil {
		return prayer.Day{}, prayerError(err)
	}
	return day, nil
}

func toSettings(req map[string]notify.Setting) (notify.Settings, error) {
	settings := make(notify.Settings, len(req))
	for k, v := range req {
		name, err := prayer.ParseName(k)
		if err != nil {
			return nil, err
		}
		if name == prayer.Sunrise {
			return nil, errors.New("sunrise cannot carry notifications")
		}
		if err := validate.Struct(v); err != nil {
			return nil, err
		}
		settings[name] = v
	}
	return settings, nil
}

func prayerError(err error) error {
	switch {
	case errors.Is(err, prayer.ErrCacheMiss):
		return fiber.NewError(fiber.StatusNotFound, "no cached prayer times")
	case errors.Is(err, prayer.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, prayer.ErrSourceUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return err
}

func (d Deps) evaluation(c *fiber.Ctx, run func(context.Context) (mode.Evaluation, error)) error {
	ev, err := run(c.UserContext())
	if err != nil {
		if errors.Is(err, mode.ErrSuperseded) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{
		"evaluation": ev,
		"state":      d.Evaluator.State().Snapshot(),
	})
}

func notificationResult(c *fiber.Ctx, res notify.Result, err error) error {
	switch {
	case err == nil:
		return c.JSON(res)
	case errors.Is(err, notify.ErrPermissionDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
			"result":  res,
		})
	case errors.Is(err, scheduler.ErrNoTimings):
		return fiber.NewError(fiber.StatusConflict, "prayer times have not been resolved yet")
	}
	return err
}
