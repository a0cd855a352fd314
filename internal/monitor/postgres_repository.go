package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStationRepository is a PostgreSQL implementation of StationRepository.
type PostgresStationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStationRepository creates a new PostgreSQL station repository.
func NewPostgresStationRepository(pool *pgxpool.Pool) *PostgresStationRepository {
	return &PostgresStationRepository{pool: pool}
}

// Upsert creates the station on first sighting and refreshes mutable fields.
func (r *PostgresStationRepository) Upsert(ctx context.Context, station *Station) error {
	query := `
		INSERT INTO stations (station_id, station_name, location, latitude, longitude, install_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id) DO UPDATE SET
			station_name = EXCLUDED.station_name,
			location = EXCLUDED.location,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude
	`

	_, err := r.pool.Exec(ctx, query,
		station.ID,
		station.Name,
		station.Location,
		station.Latitude,
		station.Longitude,
		station.InstallDate,
	)
	return err
}

// Get retrieves a station by ID.
func (r *PostgresStationRepository) Get(ctx context.Context, stationID string) (*Station, error) {
	query := `
		SELECT station_id, station_name, location, latitude, longitude, install_date
		FROM stations
		WHERE station_id = $1
	`

	var station Station
	err := r.pool.QueryRow(ctx, query, stationID).Scan(
		&station.ID,
		&station.Name,
		&station.Location,
		&station.Latitude,
		&station.Longitude,
		&station.InstallDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}
	return &station, nil
}

// List retrieves all stations ordered by name.
func (r *PostgresStationRepository) List(ctx context.Context) ([]*Station, error) {
	query := `
		SELECT station_id, station_name, location, latitude, longitude, install_date
		FROM stations
		ORDER BY station_name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []*Station
	for rows.Next() {
		var station Station
		err := rows.Scan(
			&station.ID,
			&station.Name,
			&station.Location,
			&station.Latitude,
			&station.Longitude,
			&station.InstallDate,
		)
		if err != nil {
			return nil, err
		}
		stations = append(stations, &station)
	}
	return stations, rows.Err()
}

// Delete removes a station.
func (r *PostgresStationRepository) Delete(ctx context.Context, stationID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM stations WHERE station_id = $1`, stationID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrStationNotFound
	}
	return nil
}

// PostgresStatusLogRepository is a PostgreSQL implementation of StatusLogRepository.
type PostgresStatusLogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStatusLogRepository creates a new PostgreSQL status log repository.
func NewPostgresStatusLogRepository(pool *pgxpool.Pool) *PostgresStatusLogRepository {
	return &PostgresStatusLogRepository{pool: pool}
}

// Append inserts one check result row.
func (r *PostgresStatusLogRepository) Append(ctx context.Context, entry *StatusLogEntry) error {
	query := `
		INSERT INTO status_logs
			(station_id, timestamp, is_online, temperature, humidity, pressure, wind_speed, error_message, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	return r.pool.QueryRow(ctx, query,
		entry.StationID,
		entry.Timestamp,
		entry.Online,
		entry.Temperature,
		entry.Humidity,
		entry.Pressure,
		entry.WindSpeed,
		entry.ErrorMessage,
		entry.ResponseTime.Milliseconds(),
	).Scan(&entry.ID)
}

const statusLogColumns = `
	id, station_id, timestamp, is_online, temperature, humidity, pressure, wind_speed, error_message, response_time_ms
`

// Recent retrieves the newest rows for a station, newest first.
func (r *PostgresStatusLogRepository) Recent(ctx context.Context, stationID string, limit int) ([]*StatusLogEntry, error) {
	query := `
		SELECT ` + statusLogColumns + `
		FROM status_logs
		WHERE station_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatusLogs(rows)
}

// Since retrieves all rows for a station after the cutoff, newest first.
func (r *PostgresStatusLogRepository) Since(ctx context.Context, stationID string, cutoff time.Time) ([]*StatusLogEntry, error) {
	query := `
		SELECT ` + statusLogColumns + `
		FROM status_logs
		WHERE station_id = $1 AND timestamp > $2
		ORDER BY timestamp DESC
	`

	rows, err := r.pool.Query(ctx, query, stationID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatusLogs(rows)
}

// Latest retrieves the most recent row per station via DISTINCT ON, the
// deterministic "latest-status index" the dashboard queries depend on.
func (r *PostgresStatusLogRepository) Latest(ctx context.Context) (map[string]*StatusLogEntry, error) {
	query := `
		SELECT DISTINCT ON (station_id) ` + statusLogColumns + `
		FROM status_logs
		ORDER BY station_id, timestamp DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := scanStatusLogs(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*StatusLogEntry, len(entries))
	for _, entry := range entries {
		latest[entry.StationID] = entry
	}
	return latest, nil
}

// UptimeSince reports the share of online checks after the cutoff.
func (r *PostgresStatusLogRepository) UptimeSince(ctx context.Context, stationID string, cutoff time.Time) (*float64, error) {
	query := `
		SELECT AVG(CASE WHEN is_online THEN 100.0 ELSE 0.0 END)
		FROM status_logs
		WHERE station_id = $1 AND timestamp > $2
	`

	var uptime *float64
	if err := r.pool.QueryRow(ctx, query, stationID, cutoff).Scan(&uptime); err != nil {
		return nil, err
	}
	return uptime, nil
}

// AvgResponseTimeSince reports the mean response time across all stations.
func (r *PostgresStatusLogRepository) AvgResponseTimeSince(ctx context.Context, cutoff time.Time) (time.Duration, error) {
	query := `
		SELECT COALESCE(AVG(response_time_ms), 0)
		FROM status_logs
		WHERE timestamp > $1
	`

	var avgMs float64
	if err := r.pool.QueryRow(ctx, query, cutoff).Scan(&avgMs); err != nil {
		return 0, err
	}
	return time.Duration(avgMs) * time.Millisecond, nil
}

func scanStatusLogs(rows pgx.Rows) ([]*StatusLogEntry, error) {
	var entries []*StatusLogEntry
	for rows.Next() {
		var entry StatusLogEntry
		var responseMs int64
		err := rows.Scan(
			&entry.ID,
			&entry.StationID,
			&entry.Timestamp,
			&entry.Online,
			&entry.Temperature,
			&entry.Humidity,
			&entry.Pressure,
			&entry.WindSpeed,
			&entry.ErrorMessage,
			&responseMs,
		)
		if err != nil {
			return nil, err
		}
		entry.ResponseTime = time.Duration(responseMs) * time.Millisecond
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// PostgresDowntimeRepository is a PostgreSQL implementation of DowntimeRepository.
type PostgresDowntimeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDowntimeRepository creates a new PostgreSQL downtime repository.
func NewPostgresDowntimeRepository(pool *pgxpool.Pool) *PostgresDowntimeRepository {
	return &PostgresDowntimeRepository{pool: pool}
}

// FindActive retrieves the most recent active record for a station.
func (r *PostgresDowntimeRepository) FindActive(ctx context.Context, stationID string) (*DowntimeRecord, error) {
	query := `
		SELECT id, station_id, start_time, end_time, duration_minutes, status
		FROM downtime_records
		WHERE station_id = $1 AND status = 'active'
		ORDER BY start_time DESC
		LIMIT 1
	`

	var rec DowntimeRecord
	err := r.pool.QueryRow(ctx, query, stationID).Scan(
		&rec.ID,
		&rec.StationID,
		&rec.StartTime,
		&rec.EndTime,
		&rec.DurationMinutes,
		&rec.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveDowntime
		}
		return nil, err
	}
	return &rec, nil
}

// Open inserts a new active record.
func (r *PostgresDowntimeRepository) Open(ctx context.Context, stationID string, start time.Time) (*DowntimeRecord, error) {
	query := `
		INSERT INTO downtime_records (station_id, start_time, status)
		VALUES ($1, $2, 'active')
		RETURNING id
	`

	rec := &DowntimeRecord{
		StationID: stationID,
		StartTime: start,
		Status:    DowntimeActive,
	}
	if err := r.pool.QueryRow(ctx, query, stationID, start).Scan(&rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// Close resolves a record.
func (r *PostgresDowntimeRepository) Close(ctx context.Context, id int64, end time.Time, durationMinutes int) error {
	query := `
		UPDATE downtime_records
		SET end_time = $2, duration_minutes = $3, status = 'resolved'
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.pool.Exec(ctx, query, id, end, durationMinutes)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNoActiveDowntime
	}
	return nil
}

// ListActive retrieves currently active records, most recent first.
func (r *PostgresDowntimeRepository) ListActive(ctx context.Context, limit int) ([]*DowntimeRecord, error) {
	query := `
		SELECT id, station_id, start_time, end_time, duration_minutes, status
		FROM downtime_records
		WHERE status = 'active'
		ORDER BY start_time DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*DowntimeRecord
	for rows.Next() {
		var rec DowntimeRecord
		err := rows.Scan(
			&rec.ID,
			&rec.StationID,
			&rec.StartTime,
			&rec.EndTime,
			&rec.DurationMinutes,
			&rec.Status,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Ensure the PostgreSQL implementations satisfy the repository interfaces.
var (
	_ StationRepository   = (*PostgresStationRepository)(nil)
	_ StatusLogRepository = (*PostgresStatusLogRepository)(nil)
	_ DowntimeRepository  = (*PostgresDowntimeRepository)(nil)
)
