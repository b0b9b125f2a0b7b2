package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-monitoring/internal/api/http"
	"github.com/i474232898/weather-monitoring/internal/cache"
	"github.com/i474232898/weather-monitoring/internal/config"
	"github.com/i474232898/weather-monitoring/internal/logging"
	"github.com/i474232898/weather-monitoring/internal/notify"
	"github.com/i474232898/weather-monitoring/internal/scheduler"
	"github.com/i474232898/weather-monitoring/internal/store"
	"github.com/i474232898/weather-monitoring/internal/telemetry"
	"github.com/i474232898/weather-monitoring/internal/weather"
	"github.com/i474232898/weather-monitoring/internal/weather/providers"
)

const serviceName = "weather-monitoring"

func main() {
	ctx := context.Background()

	// Load configuration.
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logr)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	c, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}

	upstream := providers.NewOpenWeatherClient(httpClient, cfg.OpenWeather.APIKey, cfg.OpenWeather.BaseURL, cfg.OpenWeather.HistoryURL)

	service := weather.NewService(st, upstream, c, weather.ServiceConfig{
		Cities:   cfg.Cities,
		CacheTTL: cfg.Cache.TTL,
	}, logr.With("component", "pipeline"))
	aggregator := weather.NewAggregator(st, c, cfg.Cities, cfg.Cache.TTL, logr.With("component", "aggregator"))
	dispatcher := weather.NewAlertDispatcher(st, 10*time.Second, logr.With("component", "alerts"))
	evaluator := weather.NewAlertEvaluator(st, st, dispatcher, cfg.Cities, logr.With("component", "alerts"))

	mailer := notify.NewMailer(notify.MailerConfig{
		Server:      cfg.SMTP.Server,
		Port:        cfg.SMTP.Port,
		SenderEmail: cfg.SMTP.SenderEmail,
		Password:    cfg.SMTP.Password,
	})
	if !cfg.SMTP.Enabled() {
		logr.Warn("smtp is not configured; alert emails will fail")
	}
	notifier := notify.NewAlertNotifier(evaluator, mailer, logr.With("component", "notify"))

	// Scheduler that periodically fetches observations and aggregates summaries.
	sched := scheduler.New(scheduler.Config{
		FetchInterval:   cfg.FetchInterval,
		SummaryInterval: cfg.SummaryInterval,
		FetchTimeout:    cfg.FetchTimeout,
	}, service, aggregator, logr.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Service:    service,
		Aggregator: aggregator,
		Alerts:     evaluator,
		Notifier:   notifier,
		Thresholds: cfg.Thresholds,
	})

	go func() {
		logr.Info("http server listening", "port", cfg.Port, "cities", cfg.Cities)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logr.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Stop()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logr.Error("error during http shutdown", "error", err)
	}
	dispatcher.Wait()
	closeCache()
	closeStore()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logr.Error("error during telemetry shutdown", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.AppConfig) (weather.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set; using in-memory store")
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}, nil
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig) (weather.Cache, func(), error) {
	var (
		backend weather.Cache
		closers []func()
	)

	switch cfg.Backend {
	case "redis":
		r, err := cache.NewRedis(cache.RedisOptions{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := r.Ping(ctx); err != nil {
			// Lookups keep failing over to upstream until Redis is back.
			slog.Warn("redis unreachable at startup", "error", err)
		}
		backend = r
		closers = append(closers, func() { _ = r.Close() })
	case "badger":
		b, err := cache.NewBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		backend = b
		closers = append(closers, func() { _ = b.Close() })
	case "memory":
		backend = cache.NewMemory()
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	if cfg.Compress {
		compressed, err := cache.NewCompressed(backend)
		if err != nil {
			return nil, nil, err
		}
		backend = compressed
		closers = append(closers, compressed.Close)
	}

	return backend, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
