package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

func obsAt(city, main string, temp float64, ts time.Time) weather.Observation {
	return weather.Observation{City: city, Main: main, TempCelsius: temp, Timestamp: ts}
}

func TestMemoryStore_LatestPerCity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Clear", 30, base.Add(2*time.Minute))))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Haze", 31, base.Add(4*time.Minute))))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Rain", 29, base)))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Mumbai", "Clouds", 28, base)))

	latest, err := s.LatestPerCity(ctx, []string{"Delhi", "Mumbai", "Chennai"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "Haze", latest[0].Main)
	assert.Equal(t, "Clouds", latest[1].Main)
}

func TestMemoryStore_LatestPerCityTieUsesLaterInsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Clear", 30, ts)))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Haze", 31, ts)))

	latest, err := s.LatestPerCity(ctx, []string{"Delhi"})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "Haze", latest[0].Main)
}

func TestMemoryStore_RecentObservations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Clear", float64(i), base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := s.RecentObservations(ctx, "Delhi", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 4.0, recent[0].TempCelsius)
	assert.Equal(t, 3.0, recent[1].TempCelsius)

	none, err := s.RecentObservations(ctx, "Kolkata", 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_RetentionByCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, 0)
	base := time.Now().UTC()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Clear", float64(i), base.Add(time.Duration(i)*time.Second))))
	}

	recent, err := s.RecentObservations(ctx, "Delhi", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3.0, recent[0].TempCelsius)
}

func TestMemoryStore_SummaryTxCommitAndUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, temp := range []float64{10, 20} {
		tx, err := s.BeginSummaryTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.UpsertSummary(ctx, weather.DailySummary{City: "Delhi", Date: day, AvgTemp: temp}))
		require.NoError(t, tx.Commit(ctx))
	}

	assert.Equal(t, 1, s.SummaryCount("Delhi", day))
	got, err := s.GetSummary(ctx, "Delhi", day.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.AvgTemp)
}

func TestMemoryStore_SavepointRollbackDiscardsOnlyNested(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tx, err := s.BeginSummaryTx(ctx)
	require.NoError(t, err)

	kept, err := tx.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, kept.UpsertSummary(ctx, weather.DailySummary{City: "Delhi", Date: day}))
	require.NoError(t, kept.Commit(ctx))

	dropped, err := tx.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, dropped.UpsertSummary(ctx, weather.DailySummary{City: "Mumbai", Date: day}))
	require.NoError(t, dropped.Rollback(ctx))

	// Nothing is visible before the outer commit.
	_, err = s.GetSummary(ctx, "Delhi", day)
	require.ErrorIs(t, err, weather.ErrNotFound)

	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), errTxClosed)

	_, err = s.GetSummary(ctx, "Delhi", day)
	require.NoError(t, err)
	_, err = s.GetSummary(ctx, "Mumbai", day)
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestMemoryStore_ConditionStatsWithinDay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Haze", 30, day.Add(time.Hour))))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Clear", 34, day.Add(2*time.Hour))))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Haze", 32, day.Add(3*time.Hour))))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Rain", 20, day.Add(25*time.Hour))))

	tx, err := s.BeginSummaryTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	stats, err := tx.ConditionStats(ctx, "Delhi", day)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Haze", stats[0].Condition)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.Equal(t, 62.0, stats[0].SumTemp)
	assert.Equal(t, "Clear", stats[1].Condition)
}

func TestMemoryStore_LatestAlert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.LatestAlert(ctx, "Delhi")
	require.ErrorIs(t, err, weather.ErrNotFound)

	require.NoError(t, s.InsertAlert(ctx, weather.Alert{ID: "a", City: "Delhi", AlertType: weather.AlertHighHumidity, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, s.InsertAlert(ctx, weather.Alert{ID: "b", City: "Delhi", AlertType: weather.AlertStrongWinds, Timestamp: base}))

	got, err := s.LatestAlert(ctx, "Delhi")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestMemoryStore_RetentionByAge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, time.Hour)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Rain", 20, clock.Add(-2*time.Hour))))
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Haze", 30, clock.Add(-30*time.Minute))))

	recent, err := s.RecentObservations(ctx, "Delhi", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Haze", recent[0].Main)

	// Pruning happens on insert, relative to the store clock.
	clock = clock.Add(time.Hour)
	require.NoError(t, s.InsertObservation(ctx, obsAt("Delhi", "Clear", 32, clock)))

	recent, err = s.RecentObservations(ctx, "Delhi", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Clear", recent[0].Main)
}
