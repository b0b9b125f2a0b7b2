package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

var errTxClosed = errors.New("store: transaction already closed")

type summaryKey struct {
	city string
	date string
}

func keyFor(city string, date time.Time) summaryKey {
	return summaryKey{city: city, date: date.UTC().Format(time.DateOnly)}
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: city, value: observations in insertion order
	observations map[string][]weather.Observation
	summaries    map[summaryKey]weather.DailySummary
	alerts       map[string][]weather.Alert
	nextID       int64

	// retention configuration
	maxHistory int           // max number of observations per city
	maxAge     time.Duration // optional max age for observations

	now func() time.Time
}

var _ weather.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		observations: make(map[string][]weather.Observation),
		summaries:    make(map[summaryKey]weather.DailySummary),
		alerts:       make(map[string][]weather.Alert),
		maxHistory:   maxHistory,
		maxAge:       maxAge,
		now:          time.Now,
	}
}

// InsertObservation appends an observation and enforces retention.
func (s *MemoryStore) InsertObservation(_ context.Context, obs weather.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	obs.ID = s.nextID
	obs.Timestamp = obs.Timestamp.UTC()

	history := append(s.observations[obs.City], obs)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		kept := history[:0]
		for _, o := range history {
			if !o.Timestamp.Before(cutoff) {
				kept = append(kept, o)
			}
		}
		history = kept
	}

	s.observations[obs.City] = history
	return nil
}

// LatestPerCity returns the observation with the greatest timestamp for each
// city that has data. Equal timestamps resolve to the later insert.
func (s *MemoryStore) LatestPerCity(_ context.Context, cities []string) ([]weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Observation
	for _, city := range cities {
		history := s.observations[city]
		if len(history) == 0 {
			continue
		}
		best := history[0]
		for _, o := range history[1:] {
			if newer(o, best) {
				best = o
			}
		}
		result = append(result, best)
	}
	return result, nil
}

// RecentObservations returns up to limit observations for city, newest first.
func (s *MemoryStore) RecentObservations(_ context.Context, city string, limit int) ([]weather.Observation, error) {
	s.mu.RLock()
	history := append([]weather.Observation(nil), s.observations[city]...)
	s.mu.RUnlock()

	sort.SliceStable(history, func(i, j int) bool { return newer(history[i], history[j]) })
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func newer(a, b weather.Observation) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID > b.ID
	}
	return a.Timestamp.After(b.Timestamp)
}

// GetSummary returns the stored summary for (city, date).
func (s *MemoryStore) GetSummary(_ context.Context, city string, date time.Time) (weather.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[keyFor(city, date)]
	if !ok {
		return weather.DailySummary{}, weather.ErrNotFound
	}
	return summary, nil
}

// SummaryCount returns how many summaries are stored for (city, date).
// The map key makes it at most one.
func (s *MemoryStore) SummaryCount(city string, date time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.summaries[keyFor(city, date)]; ok {
		return 1
	}
	return 0
}

// BeginSummaryTx starts a staged unit of work applied to the store on commit.
func (s *MemoryStore) BeginSummaryTx(_ context.Context) (weather.SummaryTx, error) {
	return &memorySummaryTx{store: s, pending: make(map[summaryKey]weather.DailySummary)}, nil
}

// InsertAlert appends an alert.
func (s *MemoryStore) InsertAlert(_ context.Context, alert weather.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert.Timestamp = alert.Timestamp.UTC()
	s.alerts[alert.City] = append(s.alerts[alert.City], alert)
	return nil
}

// LatestAlert returns the most recent alert for city.
func (s *MemoryStore) LatestAlert(_ context.Context, city string) (weather.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := s.alerts[city]
	if len(alerts) == 0 {
		return weather.Alert{}, weather.ErrNotFound
	}
	best := alerts[0]
	for _, a := range alerts[1:] {
		if !a.Timestamp.Before(best.Timestamp) {
			best = a
		}
	}
	return best, nil
}

// Alerts returns every stored alert for city in insertion order.
func (s *MemoryStore) Alerts(city string) []weather.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]weather.Alert(nil), s.alerts[city]...)
}

// memorySummaryTx stages summary upserts. A nested tx merges into its parent
// on commit; the outermost applies to the store.
type memorySummaryTx struct {
	store   *MemoryStore
	parent  *memorySummaryTx
	pending map[summaryKey]weather.DailySummary
	closed  bool
}

func (t *memorySummaryTx) Begin(_ context.Context) (weather.SummaryTx, error) {
	if t.closed {
		return nil, errTxClosed
	}
	return &memorySummaryTx{store: t.store, parent: t, pending: make(map[summaryKey]weather.DailySummary)}, nil
}

func (t *memorySummaryTx) ConditionStats(_ context.Context, city string, date time.Time) ([]weather.ConditionStat, error) {
	if t.closed {
		return nil, errTxClosed
	}
	from := weather.DayStart(date)
	to := from.Add(24 * time.Hour)

	t.store.mu.RLock()
	var day []weather.Observation
	for _, o := range t.store.observations[city] {
		if !o.Timestamp.Before(from) && o.Timestamp.Before(to) {
			day = append(day, o)
		}
	}
	t.store.mu.RUnlock()

	sort.SliceStable(day, func(i, j int) bool { return newer(day[j], day[i]) })
	return weather.StatsFromObservations(day), nil
}

func (t *memorySummaryTx) UpsertSummary(_ context.Context, summary weather.DailySummary) error {
	if t.closed {
		return errTxClosed
	}
	summary.Date = weather.DayStart(summary.Date)
	t.pending[keyFor(summary.City, summary.Date)] = summary
	return nil
}

func (t *memorySummaryTx) Commit(_ context.Context) error {
	if t.closed {
		return errTxClosed
	}
	t.closed = true

	if t.parent != nil {
		if t.parent.closed {
			return errTxClosed
		}
		for k, v := range t.pending {
			t.parent.pending[k] = v
		}
		return nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k, v := range t.pending {
		t.store.summaries[k] = v
	}
	return nil
}

func (t *memorySummaryTx) Rollback(_ context.Context) error {
	if t.closed {
		return errTxClosed
	}
	t.closed = true
	t.pending = nil
	return nil
}
