package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the idempotent DDL for the monitoring tables. Applied at process
// start; CREATE IF NOT EXISTS keeps repeated startups safe.
const schema = `
CREATE TABLE IF NOT EXISTS stations (
    station_id   TEXT PRIMARY KEY,
    station_name TEXT NOT NULL,
    location     TEXT NOT NULL DEFAULT '',
    latitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
    install_date DATE
);

CREATE TABLE IF NOT EXISTS status_logs (
    id               BIGSERIAL PRIMARY KEY,
    station_id       TEXT NOT NULL REFERENCES stations(station_id),
    timestamp        TIMESTAMPTZ NOT NULL,
    is_online        BOOLEAN NOT NULL,
    temperature      DOUBLE PRECISION,
    humidity         DOUBLE PRECISION,
    pressure         DOUBLE PRECISION,
    wind_speed       DOUBLE PRECISION,
    error_message    TEXT,
    response_time_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_status_logs_station_time
    ON status_logs (station_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS downtime_records (
    id               BIGSERIAL PRIMARY KEY,
    station_id       TEXT NOT NULL REFERENCES stations(station_id),
    start_time       TIMESTAMPTZ NOT NULL,
    end_time         TIMESTAMPTZ,
    duration_minutes INTEGER,
    status           TEXT NOT NULL DEFAULT 'active'
        CHECK (status IN ('active', 'resolved'))
);

CREATE INDEX IF NOT EXISTS idx_downtime_station_status
    ON downtime_records (station_id, status);

CREATE TABLE IF NOT EXISTS station_samples (
    station_id      TEXT NOT NULL REFERENCES stations(station_id),
    sample_time     TIMESTAMPTZ NOT NULL,
    uptime_pct      DOUBLE PRECISION,
    avg_temp        DOUBLE PRECISION,
    checks          INTEGER NOT NULL DEFAULT 0,
    source          TEXT NOT NULL DEFAULT 'incremental',
    PRIMARY KEY (station_id, sample_time)
);
`

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
