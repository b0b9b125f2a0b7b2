package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"WEATHER_CONFIG", "WEATHER_CITIES", "FETCH_INTERVAL", "SUMMARY_INTERVAL", "FETCH_TIMEOUT", "HTTP_TIMEOUT",
	"CACHE_BACKEND", "CACHE_COMPRESS", "CACHE_TTL", "REDIS_HOST", "REDIS_PORT", "REDIS_URL", "REDIS_PASSWORD",
	"REDIS_DB", "BADGER_PATH", "DATABASE_URL", "OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL",
	"OPENWEATHER_HISTORY_URL", "PORT", "LOG_LEVEL", "LOG_FORMAT", "SMTP_SERVER", "SMTP_PORT",
	"SMTP_SENDER_EMAIL", "SMTP_PASSWORD", "AWS_SECRET_ID", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"STORE_MAX_HISTORY", "STORE_MAX_AGE", "ALERT_TEMP_HIGH", "ALERT_HUMIDITY_HIGH", "ALERT_PRESSURE_MIN",
	"ALERT_PRESSURE_MAX", "ALERT_WIND_HIGH", "ALERT_VISIBILITY_LOW",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

type staticSecrets map[string]string

func (s staticSecrets) SecretValue(_ context.Context, id string) (string, error) {
	v, ok := s[id]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

func noSecrets(context.Context) (SecretSource, error) {
	return nil, errors.New("secrets manager not expected")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(context.Background(), noSecrets)
	require.NoError(t, err)
	assert.Equal(t, []string{"Delhi", "Mumbai", "Chennai", "Bengaluru", "Kolkata", "Hyderabad"}, cfg.Cities)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 24*time.Hour, cfg.SummaryInterval)
	assert.Equal(t, 299*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 35.0, cfg.Thresholds.TempHigh)
	assert.Equal(t, "8000", cfg.Port)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_CITIES", " Delhi , Pune,")
	t.Setenv("FETCH_INTERVAL", "1m")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CACHE_COMPRESS", "true")
	t.Setenv("ALERT_TEMP_HIGH", "40")
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_SENDER_EMAIL", "alerts@example.com")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := load(context.Background(), noSecrets)
	require.NoError(t, err)
	assert.Equal(t, []string{"Delhi", "Pune"}, cfg.Cities)
	assert.Equal(t, time.Minute, cfg.FetchInterval)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.True(t, cfg.Cache.Compress)
	assert.Equal(t, 40.0, cfg.Thresholds.TempHigh)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"FETCH_INTERVAL":    "soon",
		"SMTP_PORT":         "smtp",
		"CACHE_BACKEND":     "memcached",
		"LOG_FORMAT":        "xml",
		"SMTP_SENDER_EMAIL": "not-an-email",
		"ALERT_WIND_HIGH":   "strong",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := load(context.Background(), noSecrets)
			assert.Error(t, err)
		})
	}
}

func TestLoad_InconsistentThresholds(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALERT_PRESSURE_MIN", "1050")

	_, err := load(context.Background(), noSecrets)
	assert.Error(t, err)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "weather.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cities: [Pune, Jaipur]
fetchInterval: 10m
port: "9000"
thresholds:
  tempHigh: 38
  windHigh: 20
cache:
  backend: badger
  badgerPath: /tmp/weather-cache
`), 0o600))
	t.Setenv("WEATHER_CONFIG", path)
	t.Setenv("PORT", "9100")

	cfg, err := load(context.Background(), noSecrets)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pune", "Jaipur"}, cfg.Cities)
	assert.Equal(t, 10*time.Minute, cfg.FetchInterval)
	assert.Equal(t, "9100", cfg.Port, "env wins over file")
	assert.Equal(t, 38.0, cfg.Thresholds.TempHigh)
	assert.Equal(t, 20.0, cfg.Thresholds.WindHigh)
	assert.Equal(t, 80.0, cfg.Thresholds.HumidityHigh, "unset fields keep defaults")
	assert.Equal(t, 0.0, cfg.Thresholds.TempLow)
	assert.Equal(t, "badger", cfg.Cache.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := load(context.Background(), noSecrets)
	assert.Error(t, err)
}

func TestLoad_SecretsFillEmptyCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_SECRET_ID", "weather/prod")
	t.Setenv("OPENWEATHER_API_KEY", "from-env")

	secrets := staticSecrets{
		"weather/prod": `{"OPENWEATHER_API_KEY":"from-secret","DATABASE_URL":"postgres://db/weather","SMTP_PASSWORD":"pw"}`,
	}
	cfg, err := load(context.Background(), func(context.Context) (SecretSource, error) { return secrets, nil })
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OpenWeather.APIKey)
	assert.Equal(t, "postgres://db/weather", cfg.DatabaseURL)
	assert.Equal(t, "pw", cfg.SMTP.Password)
}

func TestLoad_SecretErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_SECRET_ID", "weather/missing")

	_, err := load(context.Background(), func(context.Context) (SecretSource, error) { return staticSecrets{}, nil })
	assert.Error(t, err)
}

type fakeSecretsManager struct {
	value *string
	err   error
	gotID string
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotID = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestAWSSecrets_SecretValue(t *testing.T) {
	fake := &fakeSecretsManager{value: aws.String(`{"a":"b"}`)}
	v, err := NewAWSSecretsFromClient(fake).SecretValue(context.Background(), "weather/prod")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, v)
	assert.Equal(t, "weather/prod", fake.gotID)

	_, err = NewAWSSecretsFromClient(&fakeSecretsManager{}).SecretValue(context.Background(), "x")
	assert.Error(t, err)

	_, err = NewAWSSecretsFromClient(&fakeSecretsManager{err: errors.New("denied")}).SecretValue(context.Background(), "x")
	assert.Error(t, err)
}
