package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var observationColumns = []string{
	"id", "city", "main", "description", "temp_celsius", "feels_like",
	"humidity", "wind_speed", "pressure", "visibility", "timestamp",
}

// Postgres is the durable weather.Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ weather.Store = (*Postgres)(nil)

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) InsertObservation(ctx context.Context, obs weather.Observation) error {
	query, args, err := psql.Insert("weather_data").
		Columns(observationColumns[1:]...).
		Values(obs.City, obs.Main, obs.Description, obs.TempCelsius, obs.FeelsLike,
			obs.Humidity, obs.WindSpeed, obs.Pressure, obs.Visibility, obs.Timestamp.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build insert observation: %w", err)
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: insert observation: %w", err)
	}
	return nil
}

func (p *Postgres) LatestPerCity(ctx context.Context, cities []string) ([]weather.Observation, error) {
	if len(cities) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(observationColumns...).
		Options("DISTINCT ON (city)").
		From("weather_data").
		Where(sq.Eq{"city": cities}).
		OrderBy("city", "timestamp DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build latest per city: %w", err)
	}
	return p.queryObservations(ctx, "latest per city", query, args...)
}

func (p *Postgres) RecentObservations(ctx context.Context, city string, limit int) ([]weather.Observation, error) {
	b := psql.Select(observationColumns...).
		From("weather_data").
		Where(sq.Eq{"city": city}).
		OrderBy("timestamp DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build recent observations: %w", err)
	}
	return p.queryObservations(ctx, "recent observations", query, args...)
}

func (p *Postgres) queryObservations(ctx context.Context, op, query string, args ...any) ([]weather.Observation, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var result []weather.Observation
	for rows.Next() {
		var o weather.Observation
		if err := rows.Scan(&o.ID, &o.City, &o.Main, &o.Description, &o.TempCelsius, &o.FeelsLike,
			&o.Humidity, &o.WindSpeed, &o.Pressure, &o.Visibility, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", op, err)
		}
		o.Timestamp = o.Timestamp.UTC()
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return result, nil
}

func (p *Postgres) GetSummary(ctx context.Context, city string, date time.Time) (weather.DailySummary, error) {
	query, args, err := psql.Select("city", "date", "avg_temp", "max_temp", "min_temp", "dominant_condition").
		From("daily_summary").
		Where(sq.Eq{"city": city, "date": weather.DayStart(date)}).
		ToSql()
	if err != nil {
		return weather.DailySummary{}, fmt.Errorf("postgres: build get summary: %w", err)
	}

	var s weather.DailySummary
	err = p.pool.QueryRow(ctx, query, args...).
		Scan(&s.City, &s.Date, &s.AvgTemp, &s.MaxTemp, &s.MinTemp, &s.DominantCondition)
	if errors.Is(err, pgx.ErrNoRows) {
		return weather.DailySummary{}, weather.ErrNotFound
	}
	if err != nil {
		return weather.DailySummary{}, fmt.Errorf("postgres: get summary: %w", err)
	}
	s.Date = weather.DayStart(s.Date)
	return s, nil
}

// BeginSummaryTx opens a transaction. Begin on the returned tx creates a
// savepoint.
func (p *Postgres) BeginSummaryTx(ctx context.Context) (weather.SummaryTx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgSummaryTx{tx: tx}, nil
}

func (p *Postgres) InsertAlert(ctx context.Context, alert weather.Alert) error {
	query, args, err := psql.Insert("alert").
		Columns("id", "city", "alert_type", "alert_message", "timestamp").
		Values(alert.ID, alert.City, string(alert.AlertType), alert.AlertMessage, alert.Timestamp.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build insert alert: %w", err)
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: insert alert: %w", err)
	}
	return nil
}

func (p *Postgres) LatestAlert(ctx context.Context, city string) (weather.Alert, error) {
	query, args, err := psql.Select("id", "city", "alert_type", "alert_message", "timestamp").
		From("alert").
		Where(sq.Eq{"city": city}).
		OrderBy("timestamp DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return weather.Alert{}, fmt.Errorf("postgres: build latest alert: %w", err)
	}

	var (
		a   weather.Alert
		typ string
	)
	err = p.pool.QueryRow(ctx, query, args...).Scan(&a.ID, &a.City, &typ, &a.AlertMessage, &a.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return weather.Alert{}, weather.ErrNotFound
	}
	if err != nil {
		return weather.Alert{}, fmt.Errorf("postgres: latest alert: %w", err)
	}
	a.AlertType = weather.AlertType(typ)
	a.Timestamp = a.Timestamp.UTC()
	return a, nil
}

type pgSummaryTx struct {
	tx pgx.Tx
}

func (t *pgSummaryTx) Begin(ctx context.Context) (weather.SummaryTx, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: savepoint: %w", err)
	}
	return &pgSummaryTx{tx: sp}, nil
}

// ConditionStats groups the day's observations for city by condition,
// ordered by when each condition was first seen.
func (t *pgSummaryTx) ConditionStats(ctx context.Context, city string, date time.Time) ([]weather.ConditionStat, error) {
	from := weather.DayStart(date)
	query, args, err := psql.Select(
		"main", "COUNT(*)", "SUM(temp_celsius)", "MAX(temp_celsius)", "MIN(temp_celsius)",
		"MIN(timestamp) AS first_seen").
		From("weather_data").
		Where(sq.Eq{"city": city}).
		Where(sq.GtOrEq{"timestamp": from}).
		Where(sq.Lt{"timestamp": from.Add(24 * time.Hour)}).
		GroupBy("main").
		OrderBy("first_seen", "main").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build condition stats: %w", err)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: condition stats: %w", err)
	}
	defer rows.Close()

	var stats []weather.ConditionStat
	for rows.Next() {
		var s weather.ConditionStat
		if err := rows.Scan(&s.Condition, &s.Count, &s.SumTemp, &s.MaxTemp, &s.MinTemp, &s.FirstSeen); err != nil {
			return nil, fmt.Errorf("postgres: scan condition stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: condition stats: %w", err)
	}
	return stats, nil
}

func (t *pgSummaryTx) UpsertSummary(ctx context.Context, s weather.DailySummary) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO daily_summary (city, date, avg_temp, max_temp, min_temp, dominant_condition)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (city, date) DO UPDATE SET
			avg_temp           = EXCLUDED.avg_temp,
			max_temp           = EXCLUDED.max_temp,
			min_temp           = EXCLUDED.min_temp,
			dominant_condition = EXCLUDED.dominant_condition
	`, s.City, weather.DayStart(s.Date), s.AvgTemp, s.MaxTemp, s.MinTemp, s.DominantCondition)
	if err != nil {
		return fmt.Errorf("postgres: upsert summary: %w", err)
	}
	return nil
}

func (t *pgSummaryTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgSummaryTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
