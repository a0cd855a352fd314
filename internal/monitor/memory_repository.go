package monitor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStationRepository is an in-memory implementation of
// StationRepository. This is intended for testing; production uses the
// PostgreSQL implementation.
type InMemoryStationRepository struct {
	mu       sync.RWMutex
	stations map[string]*Station
}

// NewInMemoryStationRepository creates a new in-memory station repository.
func NewInMemoryStationRepository() *InMemoryStationRepository {
	return &InMemoryStationRepository{stations: make(map[string]*Station)}
}

// Upsert creates or updates a station.
func (r *InMemoryStationRepository) Upsert(_ context.Context, station *Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *station
	if existing, ok := r.stations[station.ID]; ok {
		// install_date is written once at first sighting.
		copied.InstallDate = existing.InstallDate
	}
	r.stations[station.ID] = &copied
	return nil
}

// Get retrieves a station by ID.
func (r *InMemoryStationRepository) Get(_ context.Context, stationID string) (*Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	station, ok := r.stations[stationID]
	if !ok {
		return nil, ErrStationNotFound
	}
	copied := *station
	return &copied, nil
}

// List retrieves all stations ordered by name.
func (r *InMemoryStationRepository) List(_ context.Context) ([]*Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stations := make([]*Station, 0, len(r.stations))
	for _, station := range r.stations {
		copied := *station
		stations = append(stations, &copied)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].Name < stations[j].Name })
	return stations, nil
}

// Delete removes a station.
func (r *InMemoryStationRepository) Delete(_ context.Context, stationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stations[stationID]; !ok {
		return ErrStationNotFound
	}
	delete(r.stations, stationID)
	return nil
}

// InMemoryStatusLogRepository is an in-memory implementation of
// StatusLogRepository for testing.
type InMemoryStatusLogRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*StatusLogEntry
}

// NewInMemoryStatusLogRepository creates a new in-memory status log repository.
func NewInMemoryStatusLogRepository() *InMemoryStatusLogRepository {
	return &InMemoryStatusLogRepository{}
}

// Append inserts one check result row.
func (r *InMemoryStatusLogRepository) Append(_ context.Context, entry *StatusLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

// Recent retrieves the newest rows for a station, newest first.
func (r *InMemoryStatusLogRepository) Recent(_ context.Context, stationID string, limit int) ([]*StatusLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.forStation(stationID)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Since retrieves all rows for a station after the cutoff, newest first.
func (r *InMemoryStatusLogRepository) Since(_ context.Context, stationID string, cutoff time.Time) ([]*StatusLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []*StatusLogEntry
	for _, entry := range r.forStation(stationID) {
		if entry.Timestamp.After(cutoff) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Latest retrieves the most recent row per station.
func (r *InMemoryStatusLogRepository) Latest(_ context.Context) (map[string]*StatusLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := make(map[string]*StatusLogEntry)
	for _, entry := range r.entries {
		current, ok := latest[entry.StationID]
		if !ok || entry.Timestamp.After(current.Timestamp) {
			copied := *entry
			latest[entry.StationID] = &copied
		}
	}
	return latest, nil
}

// UptimeSince reports the share of online checks after the cutoff.
func (r *InMemoryStatusLogRepository) UptimeSince(_ context.Context, stationID string, cutoff time.Time) (*float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var checks, online int
	for _, entry := range r.entries {
		if entry.StationID != stationID || !entry.Timestamp.After(cutoff) {
			continue
		}
		checks++
		if entry.Online {
			online++
		}
	}
	if checks == 0 {
		return nil, nil
	}
	uptime := float64(online) / float64(checks) * 100
	return &uptime, nil
}

// AvgResponseTimeSince reports the mean response time across all stations.
func (r *InMemoryStatusLogRepository) AvgResponseTimeSince(_ context.Context, cutoff time.Time) (time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total time.Duration
	var checks int
	for _, entry := range r.entries {
		if entry.Timestamp.After(cutoff) {
			total += entry.ResponseTime
			checks++
		}
	}
	if checks == 0 {
		return 0, nil
	}
	return total / time.Duration(checks), nil
}

func (r *InMemoryStatusLogRepository) forStation(stationID string) []*StatusLogEntry {
	var entries []*StatusLogEntry
	for _, entry := range r.entries {
		if entry.StationID == stationID {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries
}

// InMemoryDowntimeRepository is an in-memory implementation of
// DowntimeRepository for testing.
type InMemoryDowntimeRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []*DowntimeRecord
}

// NewInMemoryDowntimeRepository creates a new in-memory downtime repository.
func NewInMemoryDowntimeRepository() *InMemoryDowntimeRepository {
	return &InMemoryDowntimeRepository{}
}

// FindActive retrieves the most recent active record for a station.
func (r *InMemoryDowntimeRepository) FindActive(_ context.Context, stationID string) (*DowntimeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *DowntimeRecord
	for _, rec := range r.records {
		if rec.StationID != stationID || rec.Status != DowntimeActive {
			continue
		}
		if found == nil || rec.StartTime.After(found.StartTime) {
			found = rec
		}
	}
	if found == nil {
		return nil, ErrNoActiveDowntime
	}
	copied := *found
	return &copied, nil
}

// Open inserts a new active record.
func (r *InMemoryDowntimeRepository) Open(_ context.Context, stationID string, start time.Time) (*DowntimeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec := &DowntimeRecord{
		ID:        r.nextID,
		StationID: stationID,
		StartTime: start,
		Status:    DowntimeActive,
	}
	r.records = append(r.records, rec)
	copied := *rec
	return &copied, nil
}

// Close resolves a record.
func (r *InMemoryDowntimeRepository) Close(_ context.Context, id int64, end time.Time, durationMinutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id && rec.Status == DowntimeActive {
			endCopy := end
			minutes := durationMinutes
			rec.EndTime = &endCopy
			rec.DurationMinutes = &minutes
			rec.Status = DowntimeResolved
			return nil
		}
	}
	return ErrNoActiveDowntime
}

// ListActive retrieves currently active records, most recent first.
func (r *InMemoryDowntimeRepository) ListActive(_ context.Context, limit int) ([]*DowntimeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*DowntimeRecord
	for _, rec := range r.records {
		if rec.Status == DowntimeActive {
			copied := *rec
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartTime.After(active[j].StartTime) })
	if len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// All returns every record, for test assertions on historical rows.
func (r *InMemoryDowntimeRepository) All() []*DowntimeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]*DowntimeRecord, 0, len(r.records))
	for _, rec := range r.records {
		copied := *rec
		records = append(records, &copied)
	}
	return records
}

// Ensure the in-memory implementations satisfy the repository interfaces.
var (
	_ StationRepository   = (*InMemoryStationRepository)(nil)
	_ StatusLogRepository = (*InMemoryStatusLogRepository)(nil)
	_ DowntimeRepository  = (*InMemoryDowntimeRepository)(nil)
)
