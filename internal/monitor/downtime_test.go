package monitor_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpulse/stationpulse/internal/monitor"
)

func newTracker(repo monitor.DowntimeRepository) *monitor.DowntimeTracker {
	return monitor.NewDowntimeTracker(repo, zerolog.New(io.Discard))
}

func TestDowntimeTracker_OpensOnOffline(t *testing.T) {
	repo := monitor.NewInMemoryDowntimeRepository()
	tracker := newTracker(repo)
	ctx := context.Background()

	require.NoError(t, tracker.RecordOffline(ctx, "ST-1"))

	rec, err := repo.FindActive(ctx, "ST-1")
	require.NoError(t, err)
	assert.Equal(t, monitor.DowntimeActive, rec.Status)
	assert.Nil(t, rec.EndTime)
	assert.Nil(t, rec.DurationMinutes)
}

func TestDowntimeTracker_OfflineIsIdempotent(t *testing.T) {
	repo := monitor.NewInMemoryDowntimeRepository()
	tracker := newTracker(repo)
	ctx := context.Background()

	require.NoError(t, tracker.RecordOffline(ctx, "ST-1"))
	require.NoError(t, tracker.RecordOffline(ctx, "ST-1"))
	require.NoError(t, tracker.RecordOffline(ctx, "ST-1"))

	// At most one active record per station, ever.
	active := 0
	for _, rec := range repo.All() {
		if rec.Status == monitor.DowntimeActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestDowntimeTracker_OnlineWithoutDowntimeIsNoOp(t *testing.T) {
	repo := monitor.NewInMemoryDowntimeRepository()
	tracker := newTracker(repo)

	require.NoError(t, tracker.RecordOnline(context.Background(), "ST-1"))
	assert.Empty(t, repo.All())
}

func TestDowntimeTracker_ClosesOnOnline(t *testing.T) {
	repo := monitor.NewInMemoryDowntimeRepository()
	tracker := newTracker(repo)
	ctx := context.Background()

	// Station went offline 90 minutes ago.
	start := time.Now().Add(-90 * time.Minute)
	_, err := repo.Open(ctx, "ST-1", start)
	require.NoError(t, err)

	require.NoError(t, tracker.RecordOnline(ctx, "ST-1"))

	records := repo.All()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, monitor.DowntimeResolved, rec.Status)
	require.NotNil(t, rec.EndTime)
	require.NotNil(t, rec.DurationMinutes)
	assert.Equal(t, 90, *rec.DurationMinutes)

	// A second online result is a no-op.
	require.NoError(t, tracker.RecordOnline(ctx, "ST-1"))
	assert.Len(t, repo.All(), 1)
}

func TestDowntimeTracker_ReopenCreatesNewRecord(t *testing.T) {
	repo := monitor.NewInMemoryDowntimeRepository()
	tracker := newTracker(repo)
	ctx := context.Background()

	require.NoError(t, tracker.RecordOffline(ctx, "ST-1"))
	require.NoError(t, tracker.RecordOnline(ctx, "ST-1"))
	require.NoError(t, tracker.RecordOffline(ctx, "ST-1"))

	records := repo.All()
	require.Len(t, records, 2)

	resolved, active := 0, 0
	for _, rec := range records {
		switch rec.Status {
		case monitor.DowntimeResolved:
			resolved++
		case monitor.DowntimeActive:
			active++
		}
	}
	assert.Equal(t, 1, resolved, "old record stays resolved")
	assert.Equal(t, 1, active, "reopening creates a fresh record")
}
