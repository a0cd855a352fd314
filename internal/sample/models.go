// Package sample rolls raw per-check log rows up into time-bucketed uptime
// samples and serves multi-granularity history to the dashboard without
// re-scanning raw logs.
package sample

import (
	"time"
)

// Source tags how a sample row was produced.
type Source string

const (
	// SourceIncremental marks samples written by the trailing-window ingest.
	SourceIncremental Source = "incremental"

	// SourceBackfill marks samples recomputed over a historical range.
	SourceBackfill Source = "backfill"
)

// StationSample is one hourly uptime bucket for a station. The (station,
// bucket) pair is the upsert key: recomputing a bucket overwrites, never
// duplicates.
type StationSample struct {
	StationID      string
	SampleTime     time.Time
	UptimePct      *float64
	Checks         int
	AvgTemperature *float64
	Source         Source
}

// Granularity is the bucket width used when rendering a history timeseries.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// GranularityFor selects the bucket width for a requested range. The
// threshold table is a fixed part of the contract: hour up to 7 days, day up
// to 30, month up to 365, year beyond.
func GranularityFor(from, to time.Time) Granularity {
	span := to.Sub(from)
	switch {
	case span <= 7*24*time.Hour:
		return GranularityHour
	case span <= 30*24*time.Hour:
		return GranularityDay
	case span <= 365*24*time.Hour:
		return GranularityMonth
	default:
		return GranularityYear
	}
}

// truncate floors t to the start of its bucket in UTC.
func (g Granularity) truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

// next advances a bucket start to the following bucket.
func (g Granularity) next(t time.Time) time.Time {
	switch g {
	case GranularityHour:
		return t.Add(time.Hour)
	case GranularityDay:
		return t.AddDate(0, 0, 1)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	case GranularityYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.Add(time.Hour)
	}
}

// HistoryPoint is one bucket of a zero-filled history timeseries. Buckets
// without any checks report Checks=0 and a nil UptimePct; callers never see
// gaps.
type HistoryPoint struct {
	Period         time.Time
	Granularity    Granularity
	UptimePct      *float64
	Checks         int
	AvgTemperature *float64
}

// Rollup is the per-station per-hour aggregate extracted from raw status
// logs; the ingest and backfill paths turn these into StationSample rows.
type Rollup struct {
	StationID    string
	Hour         time.Time
	Checks       int
	OnlineChecks int
	TempSum      float64
	TempCount    int
}

// Sample converts a rollup into a persistable sample row.
func (r *Rollup) Sample(source Source) *StationSample {
	s := &StationSample{
		StationID:  r.StationID,
		SampleTime: r.Hour,
		Checks:     r.Checks,
		Source:     source,
	}
	if r.Checks > 0 {
		pct := float64(r.OnlineChecks) / float64(r.Checks) * 100
		s.UptimePct = &pct
	}
	if r.TempCount > 0 {
		avg := r.TempSum / float64(r.TempCount)
		s.AvgTemperature = &avg
	}
	return s
}
