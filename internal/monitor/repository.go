package monitor

import (
	"context"
	"time"
)

// StationRepository persists the station roster.
type StationRepository interface {
	// Upsert creates the station on first sighting and refreshes its
	// name/coordinates on every later sync.
	Upsert(ctx context.Context, station *Station) error

	// Get retrieves a station by ID.
	Get(ctx context.Context, stationID string) (*Station, error)

	// List retrieves all stations ordered by name.
	List(ctx context.Context) ([]*Station, error)

	// Delete removes a station. Only operator cleanup of permanently
	// unreachable IDs uses this.
	Delete(ctx context.Context, stationID string) error
}

// StatusLogRepository persists append-only check results.
type StatusLogRepository interface {
	// Append inserts one check result row.
	Append(ctx context.Context, entry *StatusLogEntry) error

	// Recent retrieves the newest rows for a station, newest first.
	Recent(ctx context.Context, stationID string, limit int) ([]*StatusLogEntry, error)

	// Latest retrieves the most recent row per station.
	Latest(ctx context.Context) (map[string]*StatusLogEntry, error)

	// Since retrieves all rows for a station after the cutoff, newest first.
	Since(ctx context.Context, stationID string, cutoff time.Time) ([]*StatusLogEntry, error)

	// UptimeSince reports the share of online checks (0-100) for a station
	// after the cutoff, or nil when no checks were recorded.
	UptimeSince(ctx context.Context, stationID string, cutoff time.Time) (*float64, error)

	// AvgResponseTimeSince reports the mean response time across all
	// stations after the cutoff. Zero when no checks were recorded.
	AvgResponseTimeSince(ctx context.Context, cutoff time.Time) (time.Duration, error)
}

// DowntimeRepository persists downtime intervals. Only the DowntimeTracker
// may change record status.
type DowntimeRepository interface {
	// FindActive retrieves the most recent active record for a station.
	// Returns ErrNoActiveDowntime when the station has none.
	FindActive(ctx context.Context, stationID string) (*DowntimeRecord, error)

	// Open inserts a new active record starting at the given instant.
	Open(ctx context.Context, stationID string, start time.Time) (*DowntimeRecord, error)

	// Close resolves a record: sets end time and duration, flips status.
	Close(ctx context.Context, id int64, end time.Time, durationMinutes int) error

	// ListActive retrieves currently active records, most recent first.
	ListActive(ctx context.Context, limit int) ([]*DowntimeRecord, error)
}
