package config

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

const configPathEnv = "WEATHER_CONFIG"

var defaultCities = []string{"Delhi", "Mumbai", "Chennai", "Bengaluru", "Kolkata", "Hyderabad"}

type AppConfig struct {
	Cities []string `yaml:"cities" validate:"required,min=1,dive,required"`

	// FetchInterval controls how often current weather is fetched for every city.
	FetchInterval   time.Duration `yaml:"fetchInterval" validate:"gt=0"`
	SummaryInterval time.Duration `yaml:"summaryInterval" validate:"gt=0"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `yaml:"httpTimeout" validate:"gt=0"`

	OpenWeather OpenWeatherConfig  `yaml:"openWeather"`
	Cache       CacheConfig        `yaml:"cache"`
	SMTP        SMTPConfig         `yaml:"smtp"`
	Thresholds  weather.Thresholds `yaml:"thresholds"`

	// DatabaseURL selects the Postgres store. Empty keeps data in memory.
	DatabaseURL string `yaml:"databaseUrl"`

	// In-memory store retention.
	StoreMaxHistory int           `yaml:"storeMaxHistory"` // max number of observations per city (0 = unlimited)
	StoreMaxAge     time.Duration `yaml:"storeMaxAge"`     // max age of observations (0 = unlimited)

	Port         string `yaml:"port" validate:"required,numeric"`
	LogLevel     string `yaml:"logLevel"`
	LogFormat    string `yaml:"logFormat" validate:"oneof=text json"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	AWSSecretID  string `yaml:"awsSecretId"`
}

type OpenWeatherConfig struct {
	APIKey     string `yaml:"apiKey"`
	BaseURL    string `yaml:"baseUrl" validate:"omitempty,url"`
	HistoryURL string `yaml:"historyUrl" validate:"omitempty,url"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=memory redis badger"`
	Compress      bool          `yaml:"compress"`
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	RedisURL      string        `yaml:"redisUrl"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb" validate:"gte=0"`
	BadgerPath    string        `yaml:"badgerPath"`
}

type SMTPConfig struct {
	Server      string `yaml:"server"`
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	SenderEmail string `yaml:"senderEmail" validate:"omitempty,email"`
	Password    string `yaml:"password"`
}

// Enabled reports whether enough is configured to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Server != "" && s.SenderEmail != ""
}

// Default returns the configuration used when nothing is overridden.
func Default() *AppConfig {
	return &AppConfig{
		Cities:          append([]string(nil), defaultCities...),
		FetchInterval:   5 * time.Minute,
		SummaryInterval: 24 * time.Hour,
		FetchTimeout:    60 * time.Second,
		HTTPTimeout:     10 * time.Second,
		Cache: CacheConfig{
			TTL: weather.DefaultCacheTTL,
		},
		SMTP:            SMTPConfig{Port: 587},
		Thresholds:      weather.DefaultThresholds(),
		StoreMaxHistory: 288 * 7, // a week at 5-minute intervals
		Port:            "8000",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from .env, an optional YAML file and the
// environment, then resolves secrets from AWS Secrets Manager when
// AWS_SECRET_ID is set.
func Load(ctx context.Context) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return load(ctx, func(ctx context.Context) (SecretSource, error) {
		return NewAWSSecrets(ctx)
	})
}

func load(ctx context.Context, secrets func(context.Context) (SecretSource, error)) (*AppConfig, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.AWSSecretID != "" {
		src, err := secrets(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		raw, err := src.SecretValue(ctx, cfg.AWSSecretID)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		if err := cfg.applySecret(raw); err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
		if cfg.Cache.RedisURL != "" || cfg.Cache.RedisAddr != "" {
			cfg.Cache.Backend = "redis"
		}
	}
	cfg.Thresholds.TempLow = weather.DefaultThresholds().TempLow

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints and threshold consistency.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if v := os.Getenv("WEATHER_CITIES"); v != "" {
		c.Cities = splitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_INTERVAL", &c.FetchInterval},
		{"SUMMARY_INTERVAL", &c.SummaryInterval},
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"HTTP_TIMEOUT", &c.HTTPTimeout},
		{"CACHE_TTL", &c.Cache.TTL},
		{"STORE_MAX_AGE", &c.StoreMaxAge},
	}
	for _, d := range durations {
		if err := getenvDuration(d.key, d.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &c.Cache.RedisDB},
		{"SMTP_PORT", &c.SMTP.Port},
		{"STORE_MAX_HISTORY", &c.StoreMaxHistory},
	}
	for _, n := range ints {
		if err := getenvInt(n.key, n.dst); err != nil {
			return err
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"ALERT_TEMP_HIGH", &c.Thresholds.TempHigh},
		{"ALERT_HUMIDITY_HIGH", &c.Thresholds.HumidityHigh},
		{"ALERT_PRESSURE_MIN", &c.Thresholds.PressureMin},
		{"ALERT_PRESSURE_MAX", &c.Thresholds.PressureMax},
		{"ALERT_WIND_HIGH", &c.Thresholds.WindHigh},
		{"ALERT_VISIBILITY_LOW", &c.Thresholds.VisibilityLow},
	}
	for _, f := range floats {
		if err := getenvFloat(f.key, f.dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("CACHE_COMPRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_COMPRESS: %w", err)
		}
		c.Cache.Compress = b
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		c.Cache.RedisAddr = net.JoinHostPort(host, getenvDefault("REDIS_PORT", "6379"))
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"OPENWEATHER_API_KEY", &c.OpenWeather.APIKey},
		{"OPENWEATHER_BASE_URL", &c.OpenWeather.BaseURL},
		{"OPENWEATHER_HISTORY_URL", &c.OpenWeather.HistoryURL},
		{"CACHE_BACKEND", &c.Cache.Backend},
		{"REDIS_URL", &c.Cache.RedisURL},
		{"REDIS_PASSWORD", &c.Cache.RedisPassword},
		{"BADGER_PATH", &c.Cache.BadgerPath},
		{"DATABASE_URL", &c.DatabaseURL},
		{"SMTP_SERVER", &c.SMTP.Server},
		{"SMTP_SENDER_EMAIL", &c.SMTP.SenderEmail},
		{"SMTP_PASSWORD", &c.SMTP.Password},
		{"PORT", &c.Port},
		{"LOG_LEVEL", &c.LogLevel},
		{"LOG_FORMAT", &c.LogFormat},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint},
		{"AWS_SECRET_ID", &c.AWSSecretID},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func getenvFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func getenvDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
