package sample

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds dependencies for creating a Service.
type ServiceConfig struct {
	Logs    LogSource
	Samples Repository
	Logger  zerolog.Logger
}

// Service is the sample aggregator: it compacts raw check rows into hourly
// sample buckets and reconstructs zero-filled history timeseries from them.
type Service struct {
	logs    LogSource
	samples Repository
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a sample aggregation service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		logs:    cfg.Logs,
		samples: cfg.Samples,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// IngestRecent rolls up the trailing window of raw log rows into hourly
// buckets. The window covers whole hours: it starts at the hour floor of
// (now − window) so a bucket is always recomputed from all of its rows, which
// keeps repeated ingests over the same window idempotent.
func (s *Service) IngestRecent(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		window = time.Hour
	}
	now := s.now().UTC()
	from := now.Add(-window).Truncate(time.Hour)
	return s.aggregate(ctx, from, now, SourceIncremental)
}

// Backfill recomputes samples over an arbitrary historical range. Safe to
// re-run: the upsert key makes recomputation overwrite, never double-count.
func (s *Service) Backfill(ctx context.Context, from, to time.Time) (int, error) {
	if !to.After(from) {
		return 0, fmt.Errorf("backfill range is empty: %s..%s", from, to)
	}
	return s.aggregate(ctx, from.UTC().Truncate(time.Hour), to.UTC(), SourceBackfill)
}

// BackfillDays recomputes samples for the trailing number of days.
func (s *Service) BackfillDays(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 7
	}
	now := s.now().UTC()
	return s.Backfill(ctx, now.AddDate(0, 0, -days), now)
}

func (s *Service) aggregate(ctx context.Context, from, to time.Time, source Source) (int, error) {
	rollups, err := s.logs.HourlyRollups(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("hourly rollups: %w", err)
	}

	samples := make([]*StationSample, 0, len(rollups))
	for _, r := range rollups {
		samples = append(samples, r.Sample(source))
	}

	if err := s.samples.UpsertBatch(ctx, samples); err != nil {
		return 0, fmt.Errorf("upsert samples: %w", err)
	}

	s.logger.Info().
		Time("from", from).
		Time("to", to).
		Str("source", string(source)).
		Int("samples", len(samples)).
		Msg("sample aggregation completed")
	return len(samples), nil
}

// History reconstructs a zero-filled timeseries for a station over [from, to)
// at the granularity the fixed threshold table selects for the range. Both
// ends are aligned down to bucket boundaries, so a trailing 24h window yields
// exactly 24 hourly buckets regardless of when it was asked; the partial
// current bucket is dropped, not reported short. Every bucket in the aligned
// range is present; coarser buckets are check-weighted means of the stored
// hourly samples.
func (s *Service) History(ctx context.Context, stationID string, from, to time.Time) ([]*HistoryPoint, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("history range is empty: %s..%s", from, to)
	}

	g := GranularityFor(from, to)
	start := g.truncate(from.UTC())
	end := g.truncate(to.UTC())
	if !end.After(start) {
		// Range narrower than one bucket; keep the bucket it falls in.
		end = g.next(start)
	}

	samples, err := s.samples.Range(ctx, stationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sample range: %w", err)
	}

	type bucketAgg struct {
		checks  int
		online  float64 // check-weighted sum of uptime percentages
		tempSum float64
		tempN   int
	}
	buckets := make(map[time.Time]*bucketAgg)
	for _, smp := range samples {
		key := g.truncate(smp.SampleTime)
		agg, ok := buckets[key]
		if !ok {
			agg = &bucketAgg{}
			buckets[key] = agg
		}
		agg.checks += smp.Checks
		if smp.UptimePct != nil {
			agg.online += *smp.UptimePct * float64(smp.Checks)
		}
		if smp.AvgTemperature != nil && smp.Checks > 0 {
			agg.tempSum += *smp.AvgTemperature * float64(smp.Checks)
			agg.tempN += smp.Checks
		}
	}

	var points []*HistoryPoint
	for period := start; period.Before(end); period = g.next(period) {
		point := &HistoryPoint{
			Period:      period,
			Granularity: g,
		}
		if agg, ok := buckets[period]; ok && agg.checks > 0 {
			point.Checks = agg.checks
			pct := agg.online / float64(agg.checks)
			point.UptimePct = &pct
			if agg.tempN > 0 {
				avg := agg.tempSum / float64(agg.tempN)
				point.AvgTemperature = &avg
			}
		}
		points = append(points, point)
	}
	return points, nil
}
