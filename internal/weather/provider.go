package weather

import (
	"context"
	"time"
)

// Upstream abstracts the remote weather data provider (e.g. OpenWeatherMap).
type Upstream interface {
	Fetch(ctx context.Context, kind Kind, city string) ([]byte, error)
}

// Cache is a key-value store with per-key expiry. A miss is reported as
// found == false, never as an error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ObservationStore persists and queries weather observations.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs Observation) error
	// LatestPerCity returns the newest observation for each city that has any.
	LatestPerCity(ctx context.Context, cities []string) ([]Observation, error)
	// RecentObservations returns up to limit observations, newest first.
	RecentObservations(ctx context.Context, city string, limit int) ([]Observation, error)
}

// SummaryStore persists daily summaries.
type SummaryStore interface {
	GetSummary(ctx context.Context, city string, date time.Time) (DailySummary, error)
	BeginSummaryTx(ctx context.Context) (SummaryTx, error)
}

// SummaryTx is a unit of work for the summary aggregator. Begin on an open
// transaction starts a nested one (a savepoint).
type SummaryTx interface {
	Begin(ctx context.Context) (SummaryTx, error)
	ConditionStats(ctx context.Context, city string, date time.Time) ([]ConditionStat, error)
	UpsertSummary(ctx context.Context, summary DailySummary) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AlertStore persists alert records.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert Alert) error
	LatestAlert(ctx context.Context, city string) (Alert, error)
}

// Store is the contract the memory store and the Postgres store satisfy.
type Store interface {
	ObservationStore
	SummaryStore
	AlertStore
}
