package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Aggregator computes daily summaries from persisted observations.
type Aggregator struct {
	store    SummaryStore
	cache    Cache
	cities   []string
	guardTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics
	now      func() time.Time
}

// NewAggregator creates a new Aggregator. guardTTL is how long a completed
// (city, date) stays marked in the cache.
func NewAggregator(store SummaryStore, cache Cache, cities []string, guardTTL time.Duration, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if guardTTL <= 0 {
		guardTTL = DefaultCacheTTL
	}
	return &Aggregator{
		store:    store,
		cache:    cache,
		cities:   append([]string(nil), cities...),
		guardTTL: guardTTL,
		logger:   logger,
		metrics:  newMetrics(),
		now:      time.Now,
	}
}

// SummaryReport describes one aggregator run.
type SummaryReport struct {
	Date     time.Time
	Upserted []string
	Guarded  []string
	Empty    []string
	Failed   []string
}

// Run aggregates the given UTC day for every configured city inside one
// transaction. Each city runs in its own savepoint so a failing city is
// rolled back and logged without aborting the batch. Failing to open or
// commit the transaction aborts the whole run.
func (a *Aggregator) Run(ctx context.Context, date time.Time) (SummaryReport, error) {
	day := DayStart(date)
	report := SummaryReport{Date: day}

	tx, err := a.store.BeginSummaryTx(ctx)
	if err != nil {
		return report, &PersistenceError{Op: "begin summary transaction", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, city := range a.cities {
		if a.guarded(ctx, city, day) {
			report.Guarded = append(report.Guarded, city)
			continue
		}

		written, err := a.summarizeCity(ctx, tx, city, day)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, city)
			a.logger.Error("daily summary failed", "city", city, "date", day.Format(time.DateOnly), "error", err)
		case !written:
			report.Empty = append(report.Empty, city)
		default:
			report.Upserted = append(report.Upserted, city)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return SummaryReport{Date: day}, &PersistenceError{Op: "commit daily summaries", Err: err}
	}

	// Guards are only written once the rows are durable.
	for _, city := range report.Upserted {
		a.metrics.summaries.Add(ctx, 1, cityAttr(city))
		key := SummaryGuardKey(city, day)
		if err := a.cache.Set(ctx, key, []byte(day.Format(time.DateOnly)), a.guardTTL); err != nil {
			a.logger.Warn("cache set failed", "key", key, "error", err)
		}
	}

	return report, nil
}

func (a *Aggregator) summarizeCity(ctx context.Context, tx SummaryTx, city string, day time.Time) (bool, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}

	stats, err := sp.ConditionStats(ctx, city, day)
	if err != nil {
		_ = sp.Rollback(ctx)
		return false, fmt.Errorf("condition stats: %w", err)
	}

	summary, ok := Summarize(city, day, stats)
	if !ok {
		_ = sp.Rollback(ctx)
		return false, nil
	}

	if err := sp.UpsertSummary(ctx, summary); err != nil {
		_ = sp.Rollback(ctx)
		return false, fmt.Errorf("upsert summary: %w", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return false, fmt.Errorf("release savepoint: %w", err)
	}
	return true, nil
}

func (a *Aggregator) guarded(ctx context.Context, city string, day time.Time) bool {
	_, found, err := a.cache.Get(ctx, SummaryGuardKey(city, day))
	if err != nil {
		a.logger.Warn("summary guard lookup failed", "city", city, "error", err)
		return false
	}
	return found
}

// RunToday aggregates the current UTC day.
func (a *Aggregator) RunToday(ctx context.Context) (SummaryReport, error) {
	return a.Run(ctx, a.now())
}

// SummaryFor returns the summary for (city, date). When none is stored the
// aggregator runs for that date first. Absence is reported as found == false.
func (a *Aggregator) SummaryFor(ctx context.Context, city string, date time.Time) (DailySummary, bool, error) {
	day := DayStart(date)

	summary, err := a.store.GetSummary(ctx, city, day)
	if err == nil {
		return summary, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return DailySummary{}, false, fmt.Errorf("get summary: %w", err)
	}

	if _, err := a.Run(ctx, day); err != nil {
		return DailySummary{}, false, err
	}

	summary, err = a.store.GetSummary(ctx, city, day)
	if errors.Is(err, ErrNotFound) {
		return DailySummary{}, false, nil
	}
	if err != nil {
		return DailySummary{}, false, fmt.Errorf("get summary: %w", err)
	}
	return summary, true, nil
}
