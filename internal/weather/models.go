package weather

import (
	"time"
)

// Unit is a temperature unit preference.
type Unit string

const (
	UnitCelsius    Unit = "celsius"
	UnitFahrenheit Unit = "fahrenheit"
)

// Kind identifies which upstream document is requested.
type Kind string

const (
	KindCurrent  Kind = "current"
	KindForecast Kind = "forecast"
	KindHistory  Kind = "history"
)

// AlertType is the fixed vocabulary of alert kinds.
type AlertType string

const (
	AlertHighTemperature AlertType = "HighTemperature"
	AlertVeryCold        AlertType = "VeryCold"
	AlertHighHumidity    AlertType = "HighHumidity"
	AlertStrongWinds     AlertType = "StrongWinds"
	AlertHighPressure    AlertType = "HighPressure"
	AlertLowPressure     AlertType = "LowPressure"
	AlertLowVisibility   AlertType = "LowVisibility"
)

// Observation is one persisted weather snapshot for a city.
// Temperatures are stored in Celsius.
type Observation struct {
	ID          int64     `json:"-"`
	City        string    `json:"city"`
	Main        string    `json:"main"`
	Description string    `json:"description"`
	TempCelsius float64   `json:"temp_celsius"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Pressure    int       `json:"pressure"`
	Visibility  int       `json:"visibility"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
}

// InUnit returns a copy with temperature fields expressed in u.
func (o Observation) InUnit(u Unit) Observation {
	o.TempCelsius = ConvertTemperature(o.TempCelsius, u)
	o.FeelsLike = ConvertTemperature(o.FeelsLike, u)
	return o
}

// DailySummary holds per-city statistics for one UTC day.
type DailySummary struct {
	City              string    `json:"city"`
	Date              time.Time `json:"date"`
	AvgTemp           float64   `json:"avg_temp"`
	MaxTemp           float64   `json:"max_temp"`
	MinTemp           float64   `json:"min_temp"`
	DominantCondition string    `json:"dominant_condition"`
}

// ConditionStat is the aggregate of one weather condition over a day,
// as returned by the store grouped by condition.
type ConditionStat struct {
	Condition string
	Count     int64
	SumTemp   float64
	MaxTemp   float64
	MinTemp   float64
	FirstSeen time.Time
}

// Alert is a single threshold breach record.
type Alert struct {
	ID           string    `json:"id"`
	City         string    `json:"city"`
	AlertType    AlertType `json:"alert_type"`
	AlertMessage string    `json:"alert_message"`
	Timestamp    time.Time `json:"timestamp"`
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CacheKey builds the cache key for an upstream document of the given kind.
func CacheKey(kind Kind, city string) string {
	return string(kind) + ":" + city
}

// SummaryGuardKey is the completion marker for a (city, date) summary.
func SummaryGuardKey(city string, date time.Time) string {
	return "daily_summary:" + city + ":" + date.UTC().Format("2006-01-02")
}
