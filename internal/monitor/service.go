package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// StationStatus is a roster row joined with its latest check result, served
// to the dashboard.
type StationStatus struct {
	Station
	Online      bool
	Temperature *float64
	LastSeen    *time.Time
	// Uptime24h is the share of online checks over the trailing 24 hours,
	// nil when the station has no checks in that window.
	Uptime24h *float64
}

// StationDetail is a single station with its recent raw history.
type StationDetail struct {
	StationStatus
	Humidity  *float64
	Pressure  *float64
	WindSpeed *float64
	History   []*StatusLogEntry
}

// Stats is the fleet-wide dashboard summary.
type Stats struct {
	Total           int
	Online          int
	Offline         int
	AvgResponseTime time.Duration
}

// Alert describes one currently-offline station.
type Alert struct {
	StationID   string
	StationName string
	Location    string
	Since       time.Time
	Minutes     int
	Downtime    string
}

// Alerts groups the two dashboard outage listings.
type Alerts struct {
	// Recent lists the most recently opened active downtimes.
	Recent []Alert
	// Longest lists active downtimes by elapsed time, worst first.
	Longest []Alert
}

// Service answers dashboard queries from the roster, the status log and the
// downtime records. It never mutates downtime state; that belongs to the
// DowntimeTracker alone.
type Service struct {
	stations StationRepository
	logs     StatusLogRepository
	downtime DowntimeRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// ServiceConfig holds dependencies for creating a Service.
type ServiceConfig struct {
	Stations StationRepository
	Logs     StatusLogRepository
	Downtime DowntimeRepository
	Logger   zerolog.Logger
}

// NewService creates a dashboard query service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		stations: cfg.Stations,
		logs:     cfg.Logs,
		downtime: cfg.Downtime,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Stations returns the full roster with current status and 24h uptime.
func (s *Service) Stations(ctx context.Context) ([]*StationStatus, error) {
	stations, err := s.stations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	latest, err := s.logs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest status per station: %w", err)
	}

	cutoff := s.now().Add(-24 * time.Hour)
	result := make([]*StationStatus, 0, len(stations))
	for _, st := range stations {
		status := &StationStatus{Station: *st}
		if entry, ok := latest[st.ID]; ok {
			status.Online = entry.Online
			status.Temperature = entry.Temperature
			ts := entry.Timestamp
			status.LastSeen = &ts
		}

		uptime, err := s.logs.UptimeSince(ctx, st.ID, cutoff)
		if err != nil {
			s.logger.Error().Err(err).
				Str("station_id", st.ID).
				Msg("uptime query failed")
		} else {
			status.Uptime24h = uptime
		}
		result = append(result, status)
	}
	return result, nil
}

// Station returns one station with its trailing 24 hours of raw log rows.
func (s *Service) Station(ctx context.Context, stationID string) (*StationDetail, error) {
	st, err := s.stations.Get(ctx, stationID)
	if err != nil {
		return nil, err
	}

	detail := &StationDetail{StationStatus: StationStatus{Station: *st}}

	history, err := s.logs.Since(ctx, stationID, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("station history: %w", err)
	}
	detail.History = history

	if len(history) > 0 {
		last := history[0]
		detail.Online = last.Online
		detail.Temperature = last.Temperature
		detail.Humidity = last.Humidity
		detail.Pressure = last.Pressure
		detail.WindSpeed = last.WindSpeed
		ts := last.Timestamp
		detail.LastSeen = &ts
	}

	cutoff := s.now().Add(-24 * time.Hour)
	uptime, err := s.logs.UptimeSince(ctx, stationID, cutoff)
	if err == nil {
		detail.Uptime24h = uptime
	}
	return detail, nil
}

// Stats returns fleet totals and the 24h average response time.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stations, err := s.stations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	latest, err := s.logs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest status per station: %w", err)
	}

	online := 0
	for _, entry := range latest {
		if entry.Online {
			online++
		}
	}

	avg, err := s.logs.AvgResponseTimeSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("average response time: %w", err)
	}

	return &Stats{
		Total:           len(stations),
		Online:          online,
		Offline:         len(stations) - online,
		AvgResponseTime: avg,
	}, nil
}

// Alerts returns the recent and longest currently-active outage listings.
func (s *Service) Alerts(ctx context.Context, limit int) (*Alerts, error) {
	if limit <= 0 {
		limit = 10
	}

	active, err := s.downtime.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list active downtime: %w", err)
	}

	now := s.now()
	alerts := make([]Alert, 0, len(active))
	for _, rec := range active {
		a := Alert{
			StationID: rec.StationID,
			Since:     rec.StartTime,
			Minutes:   int(now.Sub(rec.StartTime) / time.Minute),
		}
		a.Downtime = formatDowntime(a.Minutes)

		if st, err := s.stations.Get(ctx, rec.StationID); err == nil {
			a.StationName = st.Name
			a.Location = st.Location
		}
		alerts = append(alerts, a)
	}

	longest := make([]Alert, len(alerts))
	copy(longest, alerts)
	sort.Slice(longest, func(i, j int) bool { return longest[i].Minutes > longest[j].Minutes })

	return &Alerts{Recent: alerts, Longest: longest}, nil
}

// formatDowntime renders elapsed minutes the way the dashboard displays them.
func formatDowntime(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}
