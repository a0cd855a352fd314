package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/stationpulse/stationpulse/internal/api/models"
	"github.com/stationpulse/stationpulse/internal/api/response"
	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/sample"
)

// maxBackfillDays bounds on-demand sample rebuilds.
const maxBackfillDays = 365

// AdminHandler serves the operational trigger endpoints.
type AdminHandler struct {
	sync    *monitor.SyncService
	samples *sample.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(syncService *monitor.SyncService, sampleService *sample.Service) *AdminHandler {
	return &AdminHandler{
		sync:    syncService,
		samples: sampleService,
	}
}

// TriggerSync handles POST /v1/sync - runs one sync cycle inline and reports
// the result, mirroring what the scheduled worker does every interval.
func (h *AdminHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Run(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "sync cycle failed: "+err.Error())
		return
	}

	response.JSON(w, r, http.StatusOK, models.SyncResponse{
		Synced:     result.Synced,
		Failed:     result.Failed,
		DurationMs: result.Duration.Milliseconds(),
		Timestamp:  models.Timestamp(time.Now()),
	})
}

// TriggerBackfill handles POST /v1/samples/backfill - rebuilds hourly samples
// for the trailing number of days.
func (h *AdminHandler) TriggerBackfill(w http.ResponseWriter, r *http.Request) {
	var req models.BackfillRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, r, "invalid request body", nil)
			return
		}
	}
	if req.Days < 0 || req.Days > maxBackfillDays {
		response.BadRequest(w, r, "invalid backfill request", []models.FieldError{
			{Field: "days", Message: "must be between 1 and 365"},
		})
		return
	}
	if req.Days == 0 {
		req.Days = 7
	}

	count, err := h.samples.BackfillDays(r.Context(), req.Days)
	if err != nil {
		response.InternalError(w, r, "backfill failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.BackfillResponse{
		Days:    req.Days,
		Samples: count,
	})
}
