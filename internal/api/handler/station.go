// Package handler provides HTTP handlers for the StationPulse API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stationpulse/stationpulse/internal/api/models"
	"github.com/stationpulse/stationpulse/internal/api/response"
	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/sample"
)

// maxHistoryDays bounds the history query range.
const maxHistoryDays = 730

// StationHandler serves the dashboard endpoints.
type StationHandler struct {
	monitor *monitor.Service
	samples *sample.Service
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(monitorService *monitor.Service, sampleService *sample.Service) *StationHandler {
	return &StationHandler{
		monitor: monitorService,
		samples: sampleService,
	}
}

// ListStations handles GET /v1/stations - the roster with current status.
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.monitor.Stations(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to list stations")
		return
	}

	resp := models.StationListResponse{
		Stations: make([]models.StationResponse, 0, len(stations)),
		Count:    len(stations),
	}
	for _, st := range stations {
		resp.Stations = append(resp.Stations, models.NewStationResponse(st))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// GetStation handles GET /v1/stations/{stationId} - one station with its
// trailing 24 hours of raw check rows.
func (h *StationHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationId")

	detail, err := h.monitor.Station(r.Context(), stationID)
	if err != nil {
		if errors.Is(err, monitor.ErrStationNotFound) {
			response.NotFound(w, r, "station not found")
			return
		}
		response.InternalError(w, r, "failed to load station")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewStationDetailResponse(detail))
}

// GetHistory handles GET /v1/stations/{stationId}/history - the aggregated
// uptime timeseries. Accepts either ?days=N or an explicit ?from/?to pair of
// RFC3339 timestamps; defaults to the trailing 24 hours.
func (h *StationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationId")

	from, to, fieldErrs := historyRange(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid history range", fieldErrs)
		return
	}

	// 404 before querying samples so an unknown station is not an empty
	// zero-filled series.
	if _, err := h.monitor.Station(r.Context(), stationID); err != nil {
		if errors.Is(err, monitor.ErrStationNotFound) {
			response.NotFound(w, r, "station not found")
			return
		}
		response.InternalError(w, r, "failed to load station")
		return
	}

	points, err := h.samples.History(r.Context(), stationID, from, to)
	if err != nil {
		response.InternalError(w, r, "failed to load history")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewHistoryResponse(stationID, from, to, points))
}

// GetStats handles GET /v1/stats - fleet totals.
func (h *StationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.Stats(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to compute stats")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewStatsResponse(stats))
}

// GetAlerts handles GET /v1/alerts - active outage listings.
func (h *StationHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be an integer between 1 and 100"},
			})
			return
		}
		limit = parsed
	}

	alerts, err := h.monitor.Alerts(r.Context(), limit)
	if err != nil {
		response.InternalError(w, r, "failed to list alerts")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewAlertsResponse(alerts))
}

func historyRange(r *http.Request) (from, to time.Time, fieldErrs []models.FieldError) {
	q := r.URL.Query()
	now := time.Now().UTC()

	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 || days > maxHistoryDays {
			return from, to, []models.FieldError{
				{Field: "days", Message: "must be an integer between 1 and 730"},
			}
		}
		return now.AddDate(0, 0, -days), now, nil
	}

	fromRaw, toRaw := q.Get("from"), q.Get("to")
	if fromRaw == "" && toRaw == "" {
		return now.Add(-24 * time.Hour), now, nil
	}

	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "from", Message: "must be an RFC3339 timestamp"})
	}
	to = now
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			fieldErrs = append(fieldErrs, models.FieldError{Field: "to", Message: "must be an RFC3339 timestamp"})
		}
	}
	if len(fieldErrs) == 0 && !to.After(from) {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "to", Message: "must be after from"})
	}
	return from, to, fieldErrs
}
