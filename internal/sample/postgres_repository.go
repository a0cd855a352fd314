package sample

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL sample repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// UpsertBatch writes sample rows keyed by (station, bucket).
func (r *PostgresRepository) UpsertBatch(ctx context.Context, samples []*StationSample) error {
	if len(samples) == 0 {
		return nil
	}

	query := `
		INSERT INTO station_samples (station_id, sample_time, uptime_pct, checks, avg_temp, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id, sample_time) DO UPDATE SET
			uptime_pct = EXCLUDED.uptime_pct,
			checks = EXCLUDED.checks,
			avg_temp = EXCLUDED.avg_temp,
			source = EXCLUDED.source
	`

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(query,
			s.StationID,
			s.SampleTime,
			s.UptimePct,
			s.Checks,
			s.AvgTemperature,
			s.Source,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Range retrieves a station's hourly samples in [from, to), oldest first.
func (r *PostgresRepository) Range(ctx context.Context, stationID string, from, to time.Time) ([]*StationSample, error) {
	query := `
		SELECT station_id, sample_time, uptime_pct, checks, avg_temp, source
		FROM station_samples
		WHERE station_id = $1 AND sample_time >= $2 AND sample_time < $3
		ORDER BY sample_time
	`

	rows, err := r.pool.Query(ctx, query, stationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*StationSample
	for rows.Next() {
		var s StationSample
		err := rows.Scan(
			&s.StationID,
			&s.SampleTime,
			&s.UptimePct,
			&s.Checks,
			&s.AvgTemperature,
			&s.Source,
		)
		if err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}
	return samples, rows.Err()
}

// PostgresLogSource extracts hourly rollups from the status_logs table.
type PostgresLogSource struct {
	pool *pgxpool.Pool
}

// NewPostgresLogSource creates a rollup source over the raw status log table.
func NewPostgresLogSource(pool *pgxpool.Pool) *PostgresLogSource {
	return &PostgresLogSource{pool: pool}
}

// HourlyRollups aggregates raw check rows with timestamp in [from, to).
func (s *PostgresLogSource) HourlyRollups(ctx context.Context, from, to time.Time) ([]*Rollup, error) {
	query := `
		SELECT
			station_id,
			date_trunc('hour', timestamp) AS hour,
			COUNT(*) AS checks,
			COUNT(*) FILTER (WHERE is_online) AS online_checks,
			COALESCE(SUM(temperature), 0) AS temp_sum,
			COUNT(temperature) AS temp_count
		FROM status_logs
		WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY station_id, date_trunc('hour', timestamp)
		ORDER BY station_id, hour
	`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rollups []*Rollup
	for rows.Next() {
		var r Rollup
		err := rows.Scan(
			&r.StationID,
			&r.Hour,
			&r.Checks,
			&r.OnlineChecks,
			&r.TempSum,
			&r.TempCount,
		)
		if err != nil {
			return nil, err
		}
		rollups = append(rollups, &r)
	}
	return rollups, rows.Err()
}

// Ensure the PostgreSQL implementations satisfy the interfaces.
var (
	_ Repository = (*PostgresRepository)(nil)
	_ LogSource  = (*PostgresLogSource)(nil)
)
