package sample

import (
	"context"
	"sort"
	"sync"
	"time"
)

type sampleKey struct {
	stationID string
	bucket    time.Time
}

// InMemoryRepository is an in-memory implementation of Repository for
// testing.
type InMemoryRepository struct {
	mu      sync.RWMutex
	samples map[sampleKey]*StationSample
}

// NewInMemoryRepository creates a new in-memory sample repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{samples: make(map[sampleKey]*StationSample)}
}

// UpsertBatch writes sample rows keyed by (station, bucket).
func (r *InMemoryRepository) UpsertBatch(_ context.Context, samples []*StationSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		copied := *s
		r.samples[sampleKey{s.StationID, s.SampleTime.UTC()}] = &copied
	}
	return nil
}

// Range retrieves a station's hourly samples in [from, to), oldest first.
func (r *InMemoryRepository) Range(_ context.Context, stationID string, from, to time.Time) ([]*StationSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var samples []*StationSample
	for key, s := range r.samples {
		if key.stationID != stationID {
			continue
		}
		if key.bucket.Before(from) || !key.bucket.Before(to) {
			continue
		}
		copied := *s
		samples = append(samples, &copied)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].SampleTime.Before(samples[j].SampleTime) })
	return samples, nil
}

// Count returns the number of stored sample rows, for test assertions on
// upsert idempotency.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.samples)
}

// InMemoryLogSource is a LogSource over an in-memory list of raw check rows,
// for testing the aggregation paths without a database.
type InMemoryLogSource struct {
	mu   sync.RWMutex
	rows []logRow
}

type logRow struct {
	stationID   string
	timestamp   time.Time
	online      bool
	temperature *float64
}

// NewInMemoryLogSource creates an empty in-memory log source.
func NewInMemoryLogSource() *InMemoryLogSource {
	return &InMemoryLogSource{}
}

// Add records one raw check row.
func (s *InMemoryLogSource) Add(stationID string, timestamp time.Time, online bool, temperature *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, logRow{stationID, timestamp.UTC(), online, temperature})
}

// HourlyRollups aggregates raw check rows with timestamp in [from, to).
func (s *InMemoryLogSource) HourlyRollups(_ context.Context, from, to time.Time) ([]*Rollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := make(map[sampleKey]*Rollup)
	for _, row := range s.rows {
		if row.timestamp.Before(from) || !row.timestamp.Before(to) {
			continue
		}
		key := sampleKey{row.stationID, row.timestamp.Truncate(time.Hour)}
		r, ok := byKey[key]
		if !ok {
			r = &Rollup{StationID: key.stationID, Hour: key.bucket}
			byKey[key] = r
		}
		r.Checks++
		if row.online {
			r.OnlineChecks++
		}
		if row.temperature != nil {
			r.TempSum += *row.temperature
			r.TempCount++
		}
	}

	rollups := make([]*Rollup, 0, len(byKey))
	for _, r := range byKey {
		rollups = append(rollups, r)
	}
	sort.Slice(rollups, func(i, j int) bool {
		if rollups[i].StationID != rollups[j].StationID {
			return rollups[i].StationID < rollups[j].StationID
		}
		return rollups[i].Hour.Before(rollups[j].Hour)
	})
	return rollups, nil
}

// Ensure the in-memory implementations satisfy the interfaces.
var (
	_ Repository = (*InMemoryRepository)(nil)
	_ LogSource  = (*InMemoryLogSource)(nil)
)
