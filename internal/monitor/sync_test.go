package monitor_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpulse/stationpulse/internal/monitor"
)

// fakeProvider serves canned directory listings and per-station readings.
type fakeProvider struct {
	mu       sync.Mutex
	records  []monitor.StationRecord
	readings map[string]*monitor.Reading
	fetchErr map[string]error
	listErr  error
	inFlight int
	maxSeen  int
}

func (p *fakeProvider) ListStations(_ context.Context) ([]monitor.StationRecord, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.records, nil
}

func (p *fakeProvider) CurrentReading(_ context.Context, stationID string) (*monitor.Reading, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxSeen {
		p.maxSeen = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	if err, ok := p.fetchErr[stationID]; ok {
		return nil, err
	}
	return p.readings[stationID], nil
}

func record(id, name string) monitor.StationRecord {
	return monitor.StationRecord{ID: id, Name: name, Location: "Test Valley", InstallDate: time.Now()}
}

func onlineReading(temp float64) *monitor.Reading {
	return &monitor.Reading{
		HasOutdoor:  true,
		Temperature: ptr(temp),
		Humidity:    ptr(50),
		WindSpeed:   ptr(3),
		Pressure:    ptr(1013),
		ObservedAt:  time.Now(),
	}
}

type syncFixture struct {
	provider *fakeProvider
	stations *monitor.InMemoryStationRepository
	logs     *monitor.InMemoryStatusLogRepository
	downtime *monitor.InMemoryDowntimeRepository
	svc      *monitor.SyncService
}

func newSyncFixture(provider *fakeProvider, cfg monitor.SyncConfig) *syncFixture {
	f := &syncFixture{
		provider: provider,
		stations: monitor.NewInMemoryStationRepository(),
		logs:     monitor.NewInMemoryStatusLogRepository(),
		downtime: monitor.NewInMemoryDowntimeRepository(),
	}
	logger := zerolog.New(io.Discard)
	f.svc = monitor.NewSyncService(monitor.SyncServiceConfig{
		Provider:   provider,
		Classifier: monitor.StuckReadingClassifier{},
		Stations:   f.stations,
		Logs:       f.logs,
		Downtime:   monitor.NewDowntimeTracker(f.downtime, logger),
		Config:     cfg,
		Logger:     logger,
	})
	return f
}

func TestSyncService_Sequential(t *testing.T) {
	provider := &fakeProvider{
		records: []monitor.StationRecord{record("ST-1", "Alpha"), record("ST-2", "Bravo")},
		readings: map[string]*monitor.Reading{
			"ST-1": onlineReading(20.5),
			"ST-2": onlineReading(18.0),
		},
	}
	f := newSyncFixture(provider, monitor.SyncConfig{})
	ctx := context.Background()

	result, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 0, result.Failed)

	// Roster created on first sighting.
	stations, err := f.stations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, 2)

	// One log row per station per cycle.
	latest, err := f.logs.Latest(ctx)
	require.NoError(t, err)
	require.Contains(t, latest, "ST-1")
	assert.True(t, latest["ST-1"].Online)
	assert.Equal(t, 20.5, *latest["ST-1"].Temperature)
}

func TestSyncService_StationFailureDoesNotAbortCycle(t *testing.T) {
	provider := &fakeProvider{
		records: []monitor.StationRecord{record("ST-1", "Alpha"), record("ST-2", "Bravo")},
		readings: map[string]*monitor.Reading{
			"ST-2": onlineReading(18.0),
		},
		fetchErr: map[string]error{"ST-1": errors.New("upstream 404")},
	}
	f := newSyncFixture(provider, monitor.SyncConfig{})
	ctx := context.Background()

	result, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Failed)

	// Failure writes a best-effort error row and opens downtime.
	latest, err := f.logs.Latest(ctx)
	require.NoError(t, err)
	require.Contains(t, latest, "ST-1")
	assert.False(t, latest["ST-1"].Online)
	require.NotNil(t, latest["ST-1"].ErrorMessage)
	assert.Contains(t, *latest["ST-1"].ErrorMessage, "upstream 404")

	_, err = f.downtime.FindActive(ctx, "ST-1")
	assert.NoError(t, err)
}

func TestSyncService_EmptyDirectoryReportsZeroSynced(t *testing.T) {
	provider := &fakeProvider{listErr: monitor.ErrDirectoryEmpty}
	f := newSyncFixture(provider, monitor.SyncConfig{})

	result, err := f.svc.Run(context.Background())
	require.NoError(t, err, "an empty directory is not an exception")
	assert.Equal(t, 0, result.Synced)
	assert.Equal(t, 0, result.Failed)
}

func TestSyncService_ListFailurePropagates(t *testing.T) {
	provider := &fakeProvider{listErr: errors.New("login failed")}
	f := newSyncFixture(provider, monitor.SyncConfig{})

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)
}

func TestSyncService_BatchedBoundsConcurrency(t *testing.T) {
	records := make([]monitor.StationRecord, 0, 12)
	readings := make(map[string]*monitor.Reading, 12)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		records = append(records, record("ST-"+id, "Station "+id))
		readings["ST-"+id] = onlineReading(15)
	}
	provider := &fakeProvider{records: records, readings: readings}

	f := newSyncFixture(provider, monitor.SyncConfig{
		Mode:       monitor.SyncBatched,
		BatchSize:  4,
		BatchPause: time.Millisecond,
	})

	result, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, result.Synced)
	assert.LessOrEqual(t, provider.maxSeen, 4, "in-flight fetches capped at batch size")
}

func TestSyncService_StuckStationOpensDowntime(t *testing.T) {
	provider := &fakeProvider{
		records:  []monitor.StationRecord{record("ST-1", "Alpha")},
		readings: map[string]*monitor.Reading{"ST-1": onlineReading(20.0)},
	}
	f := newSyncFixture(provider, monitor.SyncConfig{})
	ctx := context.Background()

	// Two cycles record identical readings.
	for i := 0; i < 2; i++ {
		_, err := f.svc.Run(ctx)
		require.NoError(t, err)
	}

	// Third cycle sees the same values as both priors: stuck, offline.
	result, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	latest, err := f.logs.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, latest["ST-1"].Online)

	_, err = f.downtime.FindActive(ctx, "ST-1")
	require.NoError(t, err, "downtime opens on the stuck transition")

	// A changed temperature brings it back and resolves the downtime.
	provider.readings["ST-1"] = onlineReading(21.0)
	_, err = f.svc.Run(ctx)
	require.NoError(t, err)

	latest, err = f.logs.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest["ST-1"].Online)

	_, err = f.downtime.FindActive(ctx, "ST-1")
	assert.ErrorIs(t, err, monitor.ErrNoActiveDowntime)

	records := f.downtime.All()
	require.Len(t, records, 1)
	assert.Equal(t, monitor.DowntimeResolved, records[0].Status)
}
