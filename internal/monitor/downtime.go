package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DowntimeTracker owns the downtime record lifecycle. It is a small state
// machine per station: a transition to offline opens an interval when none is
// active, a transition to online closes the active interval. Repeated results
// in the same state are no-ops.
type DowntimeTracker struct {
	repo   DowntimeRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewDowntimeTracker creates a tracker backed by the given repository.
func NewDowntimeTracker(repo DowntimeRepository, logger zerolog.Logger) *DowntimeTracker {
	return &DowntimeTracker{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RecordOffline opens a downtime interval unless one is already active.
func (t *DowntimeTracker) RecordOffline(ctx context.Context, stationID string) error {
	_, err := t.repo.FindActive(ctx, stationID)
	if err == nil {
		// Already in downtime; nothing to do.
		return nil
	}
	if !errors.Is(err, ErrNoActiveDowntime) {
		return fmt.Errorf("find active downtime: %w", err)
	}

	start := t.now()
	if _, err := t.repo.Open(ctx, stationID, start); err != nil {
		return fmt.Errorf("open downtime: %w", err)
	}

	t.logger.Warn().
		Str("station_id", stationID).
		Time("start_time", start).
		Msg("station entered downtime")
	return nil
}

// RecordOnline closes the active downtime interval if one exists. Closing
// sets end time, computes whole minutes of duration, and resolves the record.
// A later offline transition opens a fresh record, never reuses this one.
func (t *DowntimeTracker) RecordOnline(ctx context.Context, stationID string) error {
	active, err := t.repo.FindActive(ctx, stationID)
	if err != nil {
		if errors.Is(err, ErrNoActiveDowntime) {
			return nil
		}
		return fmt.Errorf("find active downtime: %w", err)
	}

	end := t.now()
	minutes := int(end.Sub(active.StartTime) / time.Minute)
	if err := t.repo.Close(ctx, active.ID, end, minutes); err != nil {
		return fmt.Errorf("close downtime: %w", err)
	}

	t.logger.Info().
		Str("station_id", stationID).
		Time("start_time", active.StartTime).
		Int("duration_minutes", minutes).
		Msg("station recovered from downtime")
	return nil
}
