package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

const (
	DefaultBaseURL    = "https://api.openweathermap.org"
	DefaultHistoryURL = "https://history.openweathermap.org"
)

var errNoAPIKey = errors.New("openweather api key is not configured")

// OpenWeatherClient fetches current, forecast and history documents from
// OpenWeatherMap and returns the raw JSON.
type OpenWeatherClient struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	historyURL string
	circuit    *gobreaker.CircuitBreaker
	tracer     trace.Tracer
}

var _ weather.Upstream = (*OpenWeatherClient)(nil)

// NewOpenWeatherClient creates a client. Empty URLs fall back to the public
// OpenWeatherMap hosts.
func NewOpenWeatherClient(client *http.Client, apiKey, baseURL, historyURL string) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if historyURL == "" {
		historyURL = DefaultHistoryURL
	}
	return &OpenWeatherClient{
		client:     client,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		historyURL: strings.TrimRight(historyURL, "/"),
		circuit:    newBreaker("openweather"),
		tracer:     otel.Tracer("github.com/i474232898/weather-monitoring/internal/weather/providers"),
	}
}

func (p *OpenWeatherClient) endpoint(kind weather.Kind) (string, error) {
	switch kind {
	case weather.KindCurrent:
		return p.baseURL + "/data/2.5/weather", nil
	case weather.KindForecast:
		return p.baseURL + "/data/2.5/forecast", nil
	case weather.KindHistory:
		return p.historyURL + "/data/2.5/history/city", nil
	default:
		return "", fmt.Errorf("unknown document kind %q", kind)
	}
}

// Fetch requests one document. Every failure is a *weather.UpstreamError.
func (p *OpenWeatherClient) Fetch(ctx context.Context, kind weather.Kind, city string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "openweather.fetch", trace.WithAttributes(
		attribute.String("weather.kind", string(kind)),
		attribute.String("weather.city", city),
	))
	defer span.End()

	body, err := p.fetch(ctx, kind, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func (p *OpenWeatherClient) fetch(ctx context.Context, kind weather.Kind, city string) ([]byte, error) {
	upstreamErr := func(code int, err error) error {
		return &weather.UpstreamError{Kind: kind, City: city, StatusCode: code, Err: err}
	}

	if p.apiKey == "" {
		return nil, upstreamErr(0, errNoAPIKey)
	}
	endpoint, err := p.endpoint(kind)
	if err != nil {
		return nil, upstreamErr(0, err)
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", p.apiKey)

	req, err := http.NewRequest(http.MethodGet, endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, upstreamErr(0, err)
	}

	body, err := doRequest(ctx, p.client, p.circuit, req)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, upstreamErr(se.code, se.err)
		}
		return nil, upstreamErr(0, err)
	}
	return body, nil
}
