package models

import (
	"time"

	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/sample"
)

// StationResponse is one roster row with its current status.
type StationResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Location    string     `json:"location,omitempty"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	InstallDate *Timestamp `json:"installDate,omitempty"`
	IsOnline    bool       `json:"isOnline"`
	Temperature *float64   `json:"temperature,omitempty"`
	LastSeen    *Timestamp `json:"lastSeen,omitempty"`
	Uptime24h   *float64   `json:"uptime24h,omitempty"`
}

// StationListResponse wraps the roster listing.
type StationListResponse struct {
	Stations []StationResponse `json:"stations"`
	Count    int               `json:"count"`
}

// StationDetailResponse is one station with current readings and raw history.
type StationDetailResponse struct {
	StationResponse
	Humidity  *float64            `json:"humidity,omitempty"`
	Pressure  *float64            `json:"pressure,omitempty"`
	WindSpeed *float64            `json:"windSpeed,omitempty"`
	History   []StatusLogResponse `json:"history"`
}

// StatusLogResponse is one raw check result.
type StatusLogResponse struct {
	Timestamp      Timestamp `json:"timestamp"`
	IsOnline       bool      `json:"isOnline"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	Pressure       *float64  `json:"pressure,omitempty"`
	WindSpeed      *float64  `json:"windSpeed,omitempty"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
}

// StatsResponse is the fleet-wide dashboard summary.
type StatsResponse struct {
	TotalStations     int   `json:"totalStations"`
	Online            int   `json:"online"`
	Offline           int   `json:"offline"`
	AvgResponseTimeMs int64 `json:"avgResponseTimeMs"`
}

// AlertResponse describes one currently-offline station.
type AlertResponse struct {
	StationID   string    `json:"stationId"`
	StationName string    `json:"stationName,omitempty"`
	Location    string    `json:"location,omitempty"`
	Since       Timestamp `json:"since"`
	Minutes     int       `json:"minutes"`
	Downtime    string    `json:"downtime"`
}

// AlertsResponse groups the two outage listings.
type AlertsResponse struct {
	Recent  []AlertResponse `json:"recent"`
	Longest []AlertResponse `json:"longest"`
}

// HistoryPointResponse is one bucket of the aggregated history timeseries.
type HistoryPointResponse struct {
	Period         Timestamp `json:"period"`
	Granularity    string    `json:"granularity"`
	UptimePct      *float64  `json:"uptimePct,omitempty"`
	AvgTemperature *float64  `json:"avgTemperature,omitempty"`
	Checks         int       `json:"checks"`
}

// HistoryResponse wraps a station's aggregated history.
type HistoryResponse struct {
	StationID string                 `json:"stationId"`
	From      Timestamp              `json:"from"`
	To        Timestamp              `json:"to"`
	Points    []HistoryPointResponse `json:"points"`
}

// SyncResponse reports the outcome of a manually triggered sync cycle.
type SyncResponse struct {
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
	DurationMs int64     `json:"durationMs"`
	Timestamp  Timestamp `json:"timestamp"`
}

// BackfillRequest asks for a sample rebuild over the trailing days.
type BackfillRequest struct {
	Days int `json:"days"`
}

// BackfillResponse reports the outcome of a sample backfill.
type BackfillResponse struct {
	Days    int `json:"days"`
	Samples int `json:"samples"`
}

// NewStationResponse converts a station status row.
func NewStationResponse(s *monitor.StationStatus) StationResponse {
	resp := StationResponse{
		ID:          s.ID,
		Name:        s.Name,
		Location:    s.Location,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		IsOnline:    s.Online,
		Temperature: s.Temperature,
		Uptime24h:   s.Uptime24h,
	}
	if !s.InstallDate.IsZero() {
		ts := Timestamp(s.InstallDate)
		resp.InstallDate = &ts
	}
	if s.LastSeen != nil {
		ts := Timestamp(*s.LastSeen)
		resp.LastSeen = &ts
	}
	return resp
}

// NewStationDetailResponse converts a station detail with history.
func NewStationDetailResponse(d *monitor.StationDetail) StationDetailResponse {
	resp := StationDetailResponse{
		StationResponse: NewStationResponse(&d.StationStatus),
		Humidity:        d.Humidity,
		Pressure:        d.Pressure,
		WindSpeed:       d.WindSpeed,
		History:         make([]StatusLogResponse, 0, len(d.History)),
	}
	for _, entry := range d.History {
		resp.History = append(resp.History, NewStatusLogResponse(entry))
	}
	return resp
}

// NewStatusLogResponse converts a raw check row.
func NewStatusLogResponse(e *monitor.StatusLogEntry) StatusLogResponse {
	return StatusLogResponse{
		Timestamp:      Timestamp(e.Timestamp),
		IsOnline:       e.Online,
		Temperature:    e.Temperature,
		Humidity:       e.Humidity,
		Pressure:       e.Pressure,
		WindSpeed:      e.WindSpeed,
		ErrorMessage:   e.ErrorMessage,
		ResponseTimeMs: e.ResponseTime.Milliseconds(),
	}
}

// NewStatsResponse converts the fleet summary.
func NewStatsResponse(s *monitor.Stats) StatsResponse {
	return StatsResponse{
		TotalStations:     s.Total,
		Online:            s.Online,
		Offline:           s.Offline,
		AvgResponseTimeMs: s.AvgResponseTime.Milliseconds(),
	}
}

// NewAlertsResponse converts the outage listings.
func NewAlertsResponse(a *monitor.Alerts) AlertsResponse {
	return AlertsResponse{
		Recent:  newAlertList(a.Recent),
		Longest: newAlertList(a.Longest),
	}
}

func newAlertList(alerts []monitor.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{
			StationID:   a.StationID,
			StationName: a.StationName,
			Location:    a.Location,
			Since:       Timestamp(a.Since),
			Minutes:     a.Minutes,
			Downtime:    a.Downtime,
		})
	}
	return out
}

// NewHistoryResponse converts an aggregated history timeseries.
func NewHistoryResponse(stationID string, from, to time.Time, points []*sample.HistoryPoint) HistoryResponse {
	resp := HistoryResponse{
		StationID: stationID,
		From:      Timestamp(from),
		To:        Timestamp(to),
		Points:    make([]HistoryPointResponse, 0, len(points)),
	}
	for _, p := range points {
		resp.Points = append(resp.Points, HistoryPointResponse{
			Period:         Timestamp(p.Period),
			Granularity:    string(p.Granularity),
			UptimePct:      p.UptimePct,
			AvgTemperature: p.AvgTemperature,
			Checks:         p.Checks,
		})
	}
	return resp
}
