package worker_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/sample"
	"github.com/stationpulse/stationpulse/internal/worker"
)

type fakeProvider struct {
	records  []monitor.StationRecord
	readings map[string]*monitor.Reading
}

func (p *fakeProvider) ListStations(context.Context) ([]monitor.StationRecord, error) {
	return p.records, nil
}

func (p *fakeProvider) CurrentReading(_ context.Context, stationID string) (*monitor.Reading, error) {
	return p.readings[stationID], nil
}

func ptr(v float64) *float64 { return &v }

func newJob(t *testing.T) (*worker.SyncJob, *sample.InMemoryLogSource, *sample.InMemoryRepository) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	provider := &fakeProvider{
		records: []monitor.StationRecord{
			{ID: "st-1", Name: "Ridge Top"},
			{ID: "st-2", Name: "Valley Floor"},
		},
		readings: map[string]*monitor.Reading{
			"st-1": {HasOutdoor: true, Temperature: ptr(14.5), Humidity: ptr(70)},
			"st-2": {HasOutdoor: true, Temperature: ptr(11.2), WindSpeed: ptr(3.4)},
		},
	}

	syncService := monitor.NewSyncService(monitor.SyncServiceConfig{
		Provider:   provider,
		Classifier: monitor.NewClassifier(monitor.StrategyStuckReading, ""),
		Stations:   monitor.NewInMemoryStationRepository(),
		Logs:       monitor.NewInMemoryStatusLogRepository(),
		Downtime:   monitor.NewDowntimeTracker(monitor.NewInMemoryDowntimeRepository(), logger),
		Logger:     logger,
	})

	logSource := sample.NewInMemoryLogSource()
	samples := sample.NewInMemoryRepository()
	sampleService := sample.NewService(sample.ServiceConfig{
		Logs:    logSource,
		Samples: samples,
		Logger:  logger,
	})

	job := worker.NewSyncJob(worker.SyncJobConfig{
		SyncService:   syncService,
		SampleService: sampleService,
		Logger:        logger,
	})
	return job, logSource, samples
}

func TestSyncJob_Run(t *testing.T) {
	job, logSource, samples := newJob(t)

	// Raw rows from an earlier cycle inside the incremental window.
	logSource.Add("st-1", time.Now().UTC().Add(-10*time.Minute), true, ptr(14.0))

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 0, result.Failed)

	// The trailing-window aggregation folded the raw row into a sample.
	assert.Equal(t, 1, samples.Count())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(2), metrics.StationsSynced)
	assert.False(t, metrics.LastRunAt.IsZero())
}

func TestSyncJob_Backfill(t *testing.T) {
	job, logSource, samples := newJob(t)

	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Hour)
	for i := 0; i < 6; i++ {
		logSource.Add("st-1", base.Add(time.Duration(i)*time.Hour), i%2 == 0, ptr(10.0))
	}

	require.NoError(t, job.Backfill(context.Background(), 3))
	assert.Equal(t, 6, samples.Count())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.BackfillRuns)
}

func TestSyncJob_Aggregate(t *testing.T) {
	job, logSource, samples := newJob(t)

	logSource.Add("st-2", time.Now().UTC().Add(-5*time.Minute), true, nil)

	require.NoError(t, job.Aggregate(context.Background()))
	assert.Equal(t, 1, samples.Count())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.AggregateRuns)
	assert.Equal(t, int64(0), metrics.AggregateErrors)
}
