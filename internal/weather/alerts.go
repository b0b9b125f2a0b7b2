package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Thresholds configures the alert rules.
type Thresholds struct {
	// TempHigh triggers HighTemperature when the two latest readings exceed it (°C).
	TempHigh float64 `json:"temp_high" yaml:"tempHigh"`
	// TempLow triggers VeryCold. It is fixed at freezing and not overridable.
	TempLow float64 `json:"temp_low" yaml:"-"`
	// HumidityHigh triggers HighHumidity (%).
	HumidityHigh float64 `json:"humidity_high" yaml:"humidityHigh"`
	// PressureMin triggers LowPressure (hPa).
	PressureMin float64 `json:"pressure_min" yaml:"pressureMin"`
	// PressureMax triggers HighPressure (hPa).
	PressureMax float64 `json:"pressure_max" yaml:"pressureMax"`
	// WindHigh triggers StrongWinds (m/s).
	WindHigh float64 `json:"wind_high" yaml:"windHigh"`
	// VisibilityLow triggers LowVisibility (m).
	VisibilityLow float64 `json:"visibility_low" yaml:"visibilityLow"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempHigh:      35.0,
		TempLow:       0.0,
		HumidityHigh:  80,
		PressureMin:   1000,
		PressureMax:   1030,
		WindHigh:      15,
		VisibilityLow: 1000,
	}
}

// ThresholdOverrides holds optional per-request replacements. TempLow has
// no override.
type ThresholdOverrides struct {
	TempHigh      *float64
	HumidityHigh  *float64
	PressureMin   *float64
	PressureMax   *float64
	WindHigh      *float64
	VisibilityLow *float64
}

// Apply returns t with every set override replaced.
func (t Thresholds) Apply(o ThresholdOverrides) Thresholds {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&t.TempHigh, o.TempHigh)
	set(&t.HumidityHigh, o.HumidityHigh)
	set(&t.PressureMin, o.PressureMin)
	set(&t.PressureMax, o.PressureMax)
	set(&t.WindHigh, o.WindHigh)
	set(&t.VisibilityLow, o.VisibilityLow)
	t.TempLow = DefaultThresholds().TempLow
	return t
}

// Validate rejects threshold sets that cannot be evaluated consistently.
func (t Thresholds) Validate() error {
	if t.PressureMin > t.PressureMax {
		return fmt.Errorf("pressure min %.0f is above pressure max %.0f", t.PressureMin, t.PressureMax)
	}
	return nil
}

// TriggeredAlert is one rule that fired during an evaluation.
type TriggeredAlert struct {
	City      string    `json:"city"`
	AlertType AlertType `json:"alert_type"`
	Message   string    `json:"alert_message"`
}

// EvaluationReport lists what one evaluation did per city.
type EvaluationReport struct {
	Triggered []TriggeredAlert `json:"triggered"`
	Skipped   []string         `json:"skipped"`
	Failed    []string         `json:"failed"`
}

// CheckRules applies every rule to the two most recent observations of a
// city (latest first).
func CheckRules(city string, latest, previous Observation, t Thresholds) []TriggeredAlert {
	var out []TriggeredAlert
	add := func(typ AlertType, msg string) {
		out = append(out, TriggeredAlert{City: city, AlertType: typ, Message: msg})
	}

	if latest.TempCelsius > t.TempHigh && previous.TempCelsius > t.TempHigh {
		add(AlertHighTemperature, fmt.Sprintf("Temperature exceeded %.1f°C", t.TempHigh))
	}
	if latest.TempCelsius < t.TempLow {
		add(AlertVeryCold, "Temperature dropped below freezing")
	}
	if float64(latest.Humidity) > t.HumidityHigh {
		add(AlertHighHumidity, fmt.Sprintf("Humidity exceeded %.0f%%", t.HumidityHigh))
	}
	if latest.WindSpeed > t.WindHigh {
		add(AlertStrongWinds, fmt.Sprintf("Wind speed exceeded %.1f m/s", t.WindHigh))
	}
	if float64(latest.Pressure) > t.PressureMax {
		add(AlertHighPressure, fmt.Sprintf("Pressure exceeded %.0f hPa", t.PressureMax))
	}
	if float64(latest.Pressure) < t.PressureMin {
		add(AlertLowPressure, fmt.Sprintf("Pressure below %.0f hPa", t.PressureMin))
	}
	if float64(latest.Visibility) < t.VisibilityLow {
		add(AlertLowVisibility, fmt.Sprintf("Visibility below %.0f m", t.VisibilityLow))
	}
	return out
}

// AlertEvaluator checks thresholds against recent observations and hands
// every breach to the dispatcher.
type AlertEvaluator struct {
	observations ObservationStore
	alerts       AlertStore
	dispatcher   *AlertDispatcher
	cities       []string
	logger       *slog.Logger
}

// NewAlertEvaluator creates a new AlertEvaluator.
func NewAlertEvaluator(observations ObservationStore, alerts AlertStore, dispatcher *AlertDispatcher, cities []string, logger *slog.Logger) *AlertEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertEvaluator{
		observations: observations,
		alerts:       alerts,
		dispatcher:   dispatcher,
		cities:       append([]string(nil), cities...),
		logger:       logger,
	}
}

// Evaluate runs the rules for every configured city. Triggered alerts are
// persisted asynchronously; Evaluate does not wait for them.
func (e *AlertEvaluator) Evaluate(ctx context.Context, t Thresholds) (EvaluationReport, error) {
	if err := t.Validate(); err != nil {
		return EvaluationReport{}, err
	}

	var report EvaluationReport
	for _, city := range e.cities {
		recent, err := e.observations.RecentObservations(ctx, city, 2)
		if err != nil {
			report.Failed = append(report.Failed, city)
			e.logger.Error("load recent observations failed", "city", city, "error", err)
			continue
		}
		if len(recent) < 2 {
			report.Skipped = append(report.Skipped, city)
			continue
		}

		for _, a := range CheckRules(city, recent[0], recent[1], t) {
			e.dispatcher.Enqueue(ctx, a)
			report.Triggered = append(report.Triggered, a)
		}
	}
	return report, nil
}

// LatestAlert returns the newest alert for city. Absence is found == false.
func (e *AlertEvaluator) LatestAlert(ctx context.Context, city string) (Alert, bool, error) {
	a, err := e.alerts.LatestAlert(ctx, city)
	if errors.Is(err, ErrNotFound) {
		return Alert{}, false, nil
	}
	if err != nil {
		return Alert{}, false, fmt.Errorf("latest alert: %w", err)
	}
	return a, true, nil
}

// AlertDispatcher persists each alert in its own goroutine.
type AlertDispatcher struct {
	store   AlertStore
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewAlertDispatcher creates a dispatcher whose tasks each get timeout to
// write their alert.
func NewAlertDispatcher(store AlertStore, timeout time.Duration, logger *slog.Logger) *AlertDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlertDispatcher{
		store:   store,
		timeout: timeout,
		logger:  logger,
		metrics: newMetrics(),
		now:     time.Now,
	}
}

// Enqueue starts an independent task that creates and persists one Alert.
// The task outlives ctx cancellation but keeps its values.
func (d *AlertDispatcher) Enqueue(ctx context.Context, t TriggeredAlert) {
	alert := Alert{
		ID:           ulid.Make().String(),
		City:         t.City,
		AlertType:    t.AlertType,
		AlertMessage: t.Message,
		Timestamp:    d.now().UTC(),
	}
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		taskCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		if err := d.store.InsertAlert(taskCtx, alert); err != nil {
			d.logger.Error("persist alert failed",
				"city", alert.City, "alert_type", alert.AlertType, "alert_id", alert.ID, "error", err)
			return
		}
		d.metrics.alerts.Add(taskCtx, 1, cityAttr(alert.City))
	}()
}

// Wait blocks until every enqueued task has finished.
func (d *AlertDispatcher) Wait() {
	d.wg.Wait()
}
