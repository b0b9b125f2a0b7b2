package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS weather_data (
    id           BIGSERIAL PRIMARY KEY,
    city         TEXT NOT NULL,
    main         TEXT NOT NULL,
    description  TEXT NOT NULL,
    temp_celsius DOUBLE PRECISION NOT NULL,
    feels_like   DOUBLE PRECISION NOT NULL,
    humidity     INTEGER NOT NULL,
    wind_speed   DOUBLE PRECISION NOT NULL,
    pressure     INTEGER NOT NULL,
    visibility   INTEGER NOT NULL,
    timestamp    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_weather_data_city_timestamp ON weather_data (city, timestamp DESC);

CREATE TABLE IF NOT EXISTS daily_summary (
    id                 BIGSERIAL PRIMARY KEY,
    city               TEXT NOT NULL,
    date               DATE NOT NULL,
    avg_temp           DOUBLE PRECISION NOT NULL,
    max_temp           DOUBLE PRECISION NOT NULL,
    min_temp           DOUBLE PRECISION NOT NULL,
    dominant_condition TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_daily_summary_city_date ON daily_summary (city, date);

CREATE TABLE IF NOT EXISTS alert (
    id            TEXT PRIMARY KEY,
    city          TEXT NOT NULL,
    alert_type    TEXT NOT NULL,
    alert_message TEXT NOT NULL,
    timestamp     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_city_timestamp ON alert (city, timestamp DESC);
`
