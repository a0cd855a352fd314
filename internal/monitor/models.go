// Package monitor implements station health classification, downtime
// tracking, and the sync cycle that polls every station once per interval.
package monitor

import (
	"errors"
	"time"
)

// Monitor errors.
var (
	ErrStationNotFound    = errors.New("station not found")
	ErrDirectoryEmpty     = errors.New("station directory returned no stations")
	ErrNoActiveDowntime   = errors.New("no active downtime record")
	ErrStationFetchFailed = errors.New("station fetch failed")
)

// Station is a monitored field station as stored in the roster.
type Station struct {
	ID          string
	Name        string
	Location    string
	Latitude    float64
	Longitude   float64
	InstallDate time.Time
}

// StationRecord is a station as returned by an upstream directory listing.
// Latest carries the last-known reading snapshot when the provider includes
// one in the listing; it may be nil.
type StationRecord struct {
	ID          string
	Name        string
	Location    string
	Latitude    float64
	Longitude   float64
	InstallDate time.Time
	Latest      *Reading
}

// Station converts the directory record to a roster row.
func (r *StationRecord) Station() *Station {
	return &Station{
		ID:          r.ID,
		Name:        r.Name,
		Location:    r.Location,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		InstallDate: r.InstallDate,
	}
}

// Reading is a provider-agnostic snapshot of a station's current sensor
// values. Provider clients resolve sensor kinds at ingestion: only values
// from outdoor sensors are carried here, and HasOutdoor reports whether any
// outdoor sensor was present at all. Optional fields are nil when the
// provider omitted them.
type Reading struct {
	HasOutdoor  bool
	Temperature *float64
	Humidity    *float64
	Pressure    *float64
	WindSpeed   *float64

	// ProviderStatus is the upstream status vocabulary word ("Active", ...)
	// for providers that expose an authoritative status flag.
	ProviderStatus string

	ObservedAt time.Time
}

// StatusLogEntry is one append-only check result for a station. It is the
// system of record for classification history.
type StatusLogEntry struct {
	ID           int64
	StationID    string
	Timestamp    time.Time
	Online       bool
	Temperature  *float64
	Humidity     *float64
	Pressure     *float64
	WindSpeed    *float64
	ErrorMessage *string
	ResponseTime time.Duration
}

// DowntimeStatus is the lifecycle state of a downtime record.
type DowntimeStatus string

const (
	DowntimeActive   DowntimeStatus = "active"
	DowntimeResolved DowntimeStatus = "resolved"
)

// DowntimeRecord is one downtime interval for a station. At most one record
// per station may be active at any time; resolved records are kept forever.
type DowntimeRecord struct {
	ID              int64
	StationID       string
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes *int
	Status          DowntimeStatus
}

// SyncResult summarizes one full sync cycle.
type SyncResult struct {
	Synced   int
	Failed   int
	Duration time.Duration
}

// floatEqual compares two optional readings for bit-identity. Two absent
// values are considered identical.
func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
