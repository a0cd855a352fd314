// Package worker provides background job processing for StationPulse.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/sample"
)

// SyncJob runs a full monitoring pass: one sync cycle over the station
// roster followed by an incremental sample aggregation so the dashboard's
// history charts stay close to live.
type SyncJob struct {
	syncService *monitor.SyncService
	samples     *sample.Service
	logger      zerolog.Logger

	metrics *SyncMetrics
}

// SyncMetrics tracks sync job statistics.
type SyncMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	StationsSynced  int64
	StationsFailed  int64
	AggregateRuns   int64
	AggregateErrors int64
	BackfillRuns    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	SyncService   *monitor.SyncService
	SampleService *sample.Service
	Logger        zerolog.Logger
}

// NewSyncJob creates a new sync job processor.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	return &SyncJob{
		syncService: cfg.SyncService,
		samples:     cfg.SampleService,
		logger:      cfg.Logger,
		metrics:     &SyncMetrics{},
	}
}

// Run executes one sync cycle and folds the fresh status rows into hourly
// samples. An aggregation failure is logged but does not fail the run: the
// status rows are already durable and the next aggregation sweeps them up.
func (j *SyncJob) Run(ctx context.Context) (monitor.SyncResult, error) {
	j.logger.Info().Msg("starting station sync job")

	result, err := j.syncService.Run(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("station sync job failed")
		return result, err
	}

	aggregateErr := error(nil)
	if j.samples != nil {
		if _, aggregateErr = j.samples.IngestRecent(ctx, 0); aggregateErr != nil {
			j.logger.Warn().Err(aggregateErr).Msg("sample aggregation failed after sync")
		}
	}

	j.updateMetrics(result, aggregateErr)

	j.logger.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("station sync job completed")

	return result, nil
}

// Aggregate runs a standalone incremental sample aggregation.
func (j *SyncJob) Aggregate(ctx context.Context) error {
	_, err := j.samples.IngestRecent(ctx, 0)

	j.metrics.mu.Lock()
	j.metrics.AggregateRuns++
	if err != nil {
		j.metrics.AggregateErrors++
	}
	j.metrics.mu.Unlock()

	return err
}

// Backfill rebuilds hourly samples for the given number of days.
func (j *SyncJob) Backfill(ctx context.Context, days int) error {
	_, err := j.samples.BackfillDays(ctx, days)

	j.metrics.mu.Lock()
	j.metrics.BackfillRuns++
	j.metrics.mu.Unlock()

	return err
}

func (j *SyncJob) updateMetrics(result monitor.SyncResult, aggregateErr error) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.StationsSynced += int64(result.Synced)
	j.metrics.StationsFailed += int64(result.Failed)
	j.metrics.AggregateRuns++
	if aggregateErr != nil {
		j.metrics.AggregateErrors++
	}
	j.metrics.LastRunAt = time.Now()
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SyncJob) GetMetrics() SyncMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SyncMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		StationsSynced:  j.metrics.StationsSynced,
		StationsFailed:  j.metrics.StationsFailed,
		AggregateRuns:   j.metrics.AggregateRuns,
		AggregateErrors: j.metrics.AggregateErrors,
		BackfillRuns:    j.metrics.BackfillRuns,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SyncJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"stations_synced":   m.StationsSynced,
		"stations_failed":   m.StationsFailed,
		"aggregate_runs":    m.AggregateRuns,
		"aggregate_errors":  m.AggregateErrors,
		"backfill_runs":     m.BackfillRuns,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
