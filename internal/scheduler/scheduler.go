package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

// Fetcher runs one fetch cycle over all configured cities.
type Fetcher interface {
	RunFetchCycle(ctx context.Context) weather.FetchReport
}

// Summarizer aggregates the current day.
type Summarizer interface {
	RunToday(ctx context.Context) (weather.SummaryReport, error)
}

// Config holds the job intervals.
type Config struct {
	FetchInterval   time.Duration
	SummaryInterval time.Duration
	FetchTimeout    time.Duration
}

// Scheduler runs the periodic fetch and summary jobs. A tick that fires while
// the previous run of the same job is still going is skipped.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	fetcher    Fetcher
	summarizer Summarizer
	cfg        Config
	logger     *slog.Logger

	fetchRunning   atomic.Bool
	summaryRunning atomic.Bool
}

// New creates a new Scheduler.
func New(cfg Config, fetcher Fetcher, summarizer Summarizer, logger *slog.Logger) *Scheduler {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = 5 * time.Minute
	}
	if cfg.SummaryInterval <= 0 {
		cfg.SummaryInterval = 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		fetcher:    fetcher,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start schedules both jobs and starts the underlying scheduler. The fetch
// job runs immediately; the summary job waits for its first interval.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.cfg.FetchInterval).Do(func() { s.runFetch() }); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(s.cfg.SummaryInterval).WaitForSchedule().Do(func() { s.runSummary() }); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		"fetch_interval", s.cfg.FetchInterval, "summary_interval", s.cfg.SummaryInterval)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// runFetch reports whether the tick ran.
func (s *Scheduler) runFetch() bool {
	tick := uuid.NewString()
	if !s.fetchRunning.CompareAndSwap(false, true) {
		s.logger.Warn("fetch job still running, skipping tick", "tick", tick)
		return false
	}
	defer s.fetchRunning.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	report := s.fetcher.RunFetchCycle(ctx)
	s.logger.Info("fetch job completed",
		"tick", tick,
		"fetched", report.Fetched,
		"cached", report.Cached,
		"failed", report.Failed,
		"duration", time.Since(start))
	return true
}

// runSummary reports whether the tick ran.
func (s *Scheduler) runSummary() bool {
	tick := uuid.NewString()
	if !s.summaryRunning.CompareAndSwap(false, true) {
		s.logger.Warn("summary job still running, skipping tick", "tick", tick)
		return false
	}
	defer s.summaryRunning.Store(false)

	report, err := s.summarizer.RunToday(context.Background())
	if err != nil {
		s.logger.Error("summary job failed", "tick", tick, "error", err)
		return true
	}
	s.logger.Info("summary job completed",
		"tick", tick,
		"date", report.Date.Format(time.DateOnly),
		"upserted", len(report.Upserted),
		"guarded", len(report.Guarded),
		"empty", len(report.Empty),
		"failed", len(report.Failed))
	return true
}
