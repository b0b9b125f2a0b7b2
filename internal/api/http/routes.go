package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/weather-monitoring/internal/notify"
	"github.com/i474232898/weather-monitoring/internal/weather"
)

var validate = validator.New()

// Dependencies are the core components the handlers call into.
type Dependencies struct {
	Service    *weather.Service
	Aggregator *weather.Aggregator
	Alerts     *weather.AlertEvaluator
	Notifier   *notify.AlertNotifier
	// Thresholds are the configured defaults that request overrides apply to.
	Thresholds weather.Thresholds
}

// ErrorHandler is the central Fiber error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Weather Monitoring API is running!"})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-monitoring",
		})
	})

	api := app.Group("/api/weather")

	api.Get("/", func(c *fiber.Ctx) error {
		q := listQuery{Unit: query(c, "unit"), UserPrefCelsius: query(c, "user_pref_celsius")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		unit, err := q.unit()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := deps.Service.LatestWeather(c.UserContext(), unit)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"weather": obs})
	})

	api.Get("/daily-summary/:city", func(c *fiber.Ctx) error {
		q := summaryQuery{City: param(c, "city"), Date: query(c, "date")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		date, err := q.date()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		summary, found, err := deps.Aggregator.SummaryFor(c.UserContext(), q.City, date)
		if err != nil {
			return toFiberError(err)
		}
		if !found {
			return fiber.NewError(fiber.StatusNotFound,
				fmt.Sprintf("No summary data available for %s on %s", q.City, date.Format(time.DateOnly)))
		}
		return c.JSON(summary)
	})

	api.Get("/historical/:city", passthrough(deps.Service, weather.KindHistory))
	api.Get("/forecast/:city", passthrough(deps.Service, weather.KindForecast))

	api.Post("/check-alerts", func(c *fiber.Ctx) error {
		var q checkAlertsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		thresholds := deps.Thresholds.Apply(q.overrides())
		if err := thresholds.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := deps.Alerts.Evaluate(c.UserContext(), thresholds)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"message":    "Alert check started. Triggered alerts are being saved in the background.",
			"thresholds": thresholds,
			"triggered":  len(report.Triggered),
			"alerts":     report.Triggered,
			"skipped":    report.Skipped,
		})
	})

	api.Get("/latest-alert/:city", func(c *fiber.Ctx) error {
		city := param(c, "city")
		alert, found, err := deps.Alerts.LatestAlert(c.UserContext(), city)
		if err != nil {
			return toFiberError(err)
		}
		if !found {
			return c.JSON(fiber.Map{"message": "No alerts found for city: " + city})
		}
		return c.JSON(alert)
	})

	api.Post("/send-alert-email", func(c *fiber.Ctx) error {
		q := emailQuery{City: query(c, "city"), Email: query(c, "email")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := deps.Notifier.Notify(c.UserContext(), q.City, q.Email); err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "No alerts found for "+q.City)
			}
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"message": fmt.Sprintf("Alert email sent successfully to %s.", q.Email)})
	})

	// Registered last so the fixed paths above take precedence.
	api.Get("/:city", func(c *fiber.Ctx) error {
		data, _, err := deps.Service.FetchCity(c.UserContext(), param(c, "city"))
		if err != nil {
			return toFiberError(err)
		}
		c.Type("json")
		return c.Send(data)
	})
}

func passthrough(svc *weather.Service, kind weather.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := svc.Passthrough(c.UserContext(), kind, param(c, "city"))
		if err != nil {
			return toFiberError(err)
		}
		c.Type("json")
		return c.Send(data)
	}
}

// param and query copy request values out of the pooled fasthttp buffer so
// they can outlive the handler as store keys and cached fields.
func param(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.Params(key))
}

func query(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.Query(key))
}

// toFiberError maps core errors to HTTP status codes.
func toFiberError(err error) error {
	var ue *weather.UpstreamError
	switch {
	case errors.As(err, &ue):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// listQuery holds query parameters for the listing endpoint.
type listQuery struct {
	Unit            string `validate:"omitempty,oneof=celsius fahrenheit c f metric imperial"`
	UserPrefCelsius string `validate:"omitempty,boolean"`
}

func (q listQuery) unit() (weather.Unit, error) {
	if q.UserPrefCelsius != "" {
		celsius, err := strconv.ParseBool(q.UserPrefCelsius)
		if err != nil {
			return "", err
		}
		if !celsius {
			return weather.UnitFahrenheit, nil
		}
		return weather.UnitCelsius, nil
	}
	return weather.ParseUnit(q.Unit)
}

// summaryQuery holds parameters for the daily summary endpoint.
type summaryQuery struct {
	City string `validate:"required"`
	Date string `validate:"omitempty,datetime=2006-01-02"`
}

func (q summaryQuery) date() (time.Time, error) {
	if q.Date == "" {
		return weather.DayStart(time.Now()), nil
	}
	return time.ParseInLocation(time.DateOnly, q.Date, time.UTC)
}

// checkAlertsQuery holds the optional threshold overrides.
type checkAlertsQuery struct {
	TempThreshold        *float64 `validate:"omitempty,gte=-90,lte=60"`
	HumidityThreshold    *float64 `validate:"omitempty,gte=0,lte=100"`
	PressureThresholdMin *float64 `validate:"omitempty,gte=800,lte=1100"`
	PressureThresholdMax *float64 `validate:"omitempty,gte=800,lte=1100"`
	WindThreshold        *float64 `validate:"omitempty,gte=0,lte=120"`
	VisibilityThreshold  *float64 `validate:"omitempty,gte=0,lte=100000"`
}

func (q *checkAlertsQuery) bind(c *fiber.Ctx) error {
	fields := []struct {
		key string
		dst **float64
	}{
		{"temp_threshold", &q.TempThreshold},
		{"humidity_threshold", &q.HumidityThreshold},
		{"pressure_threshold_min", &q.PressureThresholdMin},
		{"pressure_threshold_max", &q.PressureThresholdMax},
		{"wind_threshold", &q.WindThreshold},
		{"visibility_threshold", &q.VisibilityThreshold},
	}
	for _, f := range fields {
		raw := query(c, f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %q is not a number", f.key, raw)
		}
		*f.dst = &v
	}
	return nil
}

func (q checkAlertsQuery) overrides() weather.ThresholdOverrides {
	return weather.ThresholdOverrides{
		TempHigh:      q.TempThreshold,
		HumidityHigh:  q.HumidityThreshold,
		PressureMin:   q.PressureThresholdMin,
		PressureMax:   q.PressureThresholdMax,
		WindHigh:      q.WindThreshold,
		VisibilityLow: q.VisibilityThreshold,
	}
}

// emailQuery holds parameters for the alert email endpoint.
type emailQuery struct {
	City  string `validate:"required"`
	Email string `validate:"required,email"`
}
