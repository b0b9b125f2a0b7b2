package weather

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const kelvinOffset = 273.15

// KelvinToCelsius converts an absolute temperature to Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - kelvinOffset
}

// CelsiusToFahrenheit converts Celsius to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// ConvertTemperature expresses a Celsius value in the requested unit.
// Unknown units fall back to Celsius.
func ConvertTemperature(c float64, u Unit) float64 {
	if u == UnitFahrenheit {
		return CelsiusToFahrenheit(c)
	}
	return c
}

// ParseUnit maps a user supplied unit string to a Unit. Empty means Celsius.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "celsius", "metric":
		return UnitCelsius, nil
	case "f", "fahrenheit", "imperial":
		return UnitFahrenheit, nil
	default:
		return "", fmt.Errorf("unknown temperature unit %q", s)
	}
}

// currentPayload is the subset of the OpenWeatherMap current weather document
// the pipeline persists. Temperatures arrive in Kelvin.
type currentPayload struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility int `json:"visibility"`
	Weather    []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// NormalizeCurrent decodes a raw current-weather document into an Observation
// for city, stamped with now (UTC).
func NormalizeCurrent(raw []byte, city string, now time.Time) (Observation, error) {
	var p currentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Observation{}, fmt.Errorf("decode current weather: %w", err)
	}
	if len(p.Weather) == 0 {
		return Observation{}, fmt.Errorf("decode current weather: missing weather condition")
	}

	return Observation{
		City:        city,
		Main:        p.Weather[0].Main,
		Description: p.Weather[0].Description,
		TempCelsius: KelvinToCelsius(p.Main.Temp),
		FeelsLike:   KelvinToCelsius(p.Main.FeelsLike),
		Humidity:    p.Main.Humidity,
		WindSpeed:   p.Wind.Speed,
		Pressure:    p.Main.Pressure,
		Visibility:  p.Visibility,
		Timestamp:   now.UTC(),
	}, nil
}
