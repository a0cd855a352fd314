package sample

import (
	"context"
	"time"
)

// Repository persists hourly sample rows.
type Repository interface {
	// UpsertBatch writes sample rows keyed by (station, bucket). A bucket
	// recomputed twice yields the same stored row, not an accumulation.
	UpsertBatch(ctx context.Context, samples []*StationSample) error

	// Range retrieves a station's hourly samples with bucket start in
	// [from, to), oldest first.
	Range(ctx context.Context, stationID string, from, to time.Time) ([]*StationSample, error)
}

// LogSource extracts hourly rollups from the raw status log store.
type LogSource interface {
	// HourlyRollups aggregates raw check rows with timestamp in [from, to)
	// into per-station per-hour rollups.
	HourlyRollups(ctx context.Context, from, to time.Time) ([]*Rollup, error)
}
