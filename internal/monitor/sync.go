package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider is the upstream station-data source consumed by the sync cycle.
type Provider interface {
	// ListStations enumerates the full station roster. Implementations
	// return ErrDirectoryEmpty only when zero stations were retrieved.
	ListStations(ctx context.Context) ([]StationRecord, error)

	// CurrentReading fetches the latest sensor snapshot for one station.
	CurrentReading(ctx context.Context, stationID string) (*Reading, error)
}

// SyncMode selects how stations are processed within a cycle.
type SyncMode string

const (
	// SyncSequential processes stations one at a time, avoiding write
	// contention on the log store.
	SyncSequential SyncMode = "sequential"

	// SyncBatched processes stations in fixed-size concurrent batches with
	// a short pause between batches. The pause is a rate limit on the
	// upstream provider, not a correctness requirement.
	SyncBatched SyncMode = "batched"
)

// SyncConfig holds configuration for the sync cycle.
type SyncConfig struct {
	// Mode selects sequential or batched processing. Default: sequential.
	Mode SyncMode

	// BatchSize is the number of stations processed concurrently in
	// batched mode. Default: 10.
	BatchSize int

	// BatchPause is the delay between batches. Default: 100ms.
	BatchPause time.Duration

	// StationTimeout bounds each per-station fetch. Default: 30s.
	StationTimeout time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.Mode == "" {
		c.Mode = SyncSequential
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 100 * time.Millisecond
	}
	if c.StationTimeout <= 0 {
		c.StationTimeout = 30 * time.Second
	}
	return c
}

// SyncServiceConfig holds dependencies for creating a SyncService.
type SyncServiceConfig struct {
	Provider   Provider
	Classifier Classifier
	Stations   StationRepository
	Logs       StatusLogRepository
	Downtime   *DowntimeTracker
	Config     SyncConfig
	Logger     zerolog.Logger
}

// SyncService orchestrates one full monitoring pass: directory fetch, roster
// upsert, per-station classification, log append and downtime update.
// Station-level failures are contained and counted; nothing at that scope can
// abort the cycle.
type SyncService struct {
	provider   Provider
	classifier Classifier
	stations   StationRepository
	logs       StatusLogRepository
	downtime   *DowntimeTracker
	cfg        SyncConfig
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSyncService creates a sync service.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	return &SyncService{
		provider:   cfg.Provider,
		classifier: cfg.Classifier,
		stations:   cfg.Stations,
		logs:       cfg.Logs,
		downtime:   cfg.Downtime,
		cfg:        cfg.Config.withDefaults(),
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Run executes one sync cycle over all stations.
//
// An empty directory is reported as a zero-synced result, not an error: the
// provider being down for one cycle is a self-correcting condition. Auth
// failures propagate so the caller can skip the cycle.
func (s *SyncService) Run(ctx context.Context) (SyncResult, error) {
	start := s.now()

	records, err := s.provider.ListStations(ctx)
	if err != nil {
		if errors.Is(err, ErrDirectoryEmpty) {
			s.logger.Warn().Msg("station directory empty, reporting zero-synced cycle")
			return SyncResult{Duration: s.now().Sub(start)}, nil
		}
		return SyncResult{}, fmt.Errorf("list stations: %w", err)
	}

	s.logger.Info().
		Int("stations", len(records)).
		Str("mode", string(s.cfg.Mode)).
		Msg("starting sync cycle")

	for i := range records {
		if err := s.stations.Upsert(ctx, records[i].Station()); err != nil {
			s.logger.Error().Err(err).
				Str("station_id", records[i].ID).
				Msg("station upsert failed")
		}
	}

	var synced, failed int
	if s.cfg.Mode == SyncBatched {
		synced, failed = s.runBatched(ctx, records)
	} else {
		synced, failed = s.runSequential(ctx, records)
	}

	result := SyncResult{
		Synced:   synced,
		Failed:   failed,
		Duration: s.now().Sub(start),
	}

	s.logger.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("sync cycle completed")
	return result, nil
}

func (s *SyncService) runSequential(ctx context.Context, records []StationRecord) (synced, failed int) {
	for i := range records {
		if err := s.syncStation(ctx, &records[i]); err != nil {
			failed++
		} else {
			synced++
		}
	}
	return synced, failed
}

func (s *SyncService) runBatched(ctx context.Context, records []StationRecord) (synced, failed int) {
	var mu sync.Mutex

	for offset := 0; offset < len(records); offset += s.cfg.BatchSize {
		end := offset + s.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[offset:end]

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(rec *StationRecord) {
				defer wg.Done()
				err := s.syncStation(ctx, rec)
				mu.Lock()
				if err != nil {
					failed++
				} else {
					synced++
				}
				mu.Unlock()
			}(&batch[i])
		}
		wg.Wait()

		if end < len(records) {
			select {
			case <-ctx.Done():
				return synced, failed
			case <-time.After(s.cfg.BatchPause):
			}
		}
	}
	return synced, failed
}

// syncStation checks one station: fetch, classify, append log, update
// downtime state. A fetch failure still writes a best-effort error row and
// opens downtime, then reports the failure to the cycle counters.
func (s *SyncService) syncStation(ctx context.Context, rec *StationRecord) error {
	stationCtx, cancel := context.WithTimeout(ctx, s.cfg.StationTimeout)
	defer cancel()

	fetchStart := s.now()
	reading, err := s.provider.CurrentReading(stationCtx, rec.ID)
	responseTime := s.now().Sub(fetchStart)

	if err != nil {
		s.logger.Error().Err(err).
			Str("station_id", rec.ID).
			Str("station_name", rec.Name).
			Msg("station fetch failed")

		msg := err.Error()
		entry := &StatusLogEntry{
			StationID:    rec.ID,
			Timestamp:    s.now(),
			Online:       false,
			ErrorMessage: &msg,
			ResponseTime: responseTime,
		}
		if logErr := s.logs.Append(ctx, entry); logErr != nil {
			s.logger.Error().Err(logErr).
				Str("station_id", rec.ID).
				Msg("error log append failed")
		}
		if dtErr := s.downtime.RecordOffline(ctx, rec.ID); dtErr != nil {
			s.logger.Error().Err(dtErr).
				Str("station_id", rec.ID).
				Msg("downtime update failed")
		}
		return fmt.Errorf("%w: %s", ErrStationFetchFailed, msg)
	}

	history, err := s.logs.Recent(ctx, rec.ID, 2)
	if err != nil {
		s.logger.Error().Err(err).
			Str("station_id", rec.ID).
			Msg("history lookup failed")
		history = nil
	}

	c := s.classifier.Classify(reading, history)

	entry := &StatusLogEntry{
		StationID:    rec.ID,
		Timestamp:    s.now(),
		Online:       c.Online,
		Temperature:  c.Temperature,
		Humidity:     c.Humidity,
		Pressure:     c.Pressure,
		WindSpeed:    c.WindSpeed,
		ResponseTime: responseTime,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append status log: %w", err)
	}

	if c.Online {
		err = s.downtime.RecordOnline(ctx, rec.ID)
	} else {
		err = s.downtime.RecordOffline(ctx, rec.ID)
	}
	if err != nil {
		// Logged and skipped; the next cycle re-evaluates the transition.
		s.logger.Error().Err(err).
			Str("station_id", rec.ID).
			Msg("downtime update failed")
	}

	return nil
}
