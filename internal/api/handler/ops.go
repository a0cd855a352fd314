package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/stationpulse/stationpulse/internal/api/models"
	"github.com/stationpulse/stationpulse/internal/api/response"
)

// Pinger reports whether a dependency is reachable. Satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	providerName string
	db           Pinger
}

// NewOpsHandler creates a new OpsHandler. db may be nil when the process has
// no database, in which case readiness reports only liveness.
func NewOpsHandler(version, buildTime, providerName string, db Pinger) *OpsHandler {
	return &OpsHandler{
		version:      version,
		buildTime:    buildTime,
		providerName: providerName,
		db:           db,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"postgres": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())

	dbStatus := models.HealthStatusOK
	var dbDetail *string
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = models.HealthStatusFail
			msg := err.Error()
			dbDetail = &msg
		}
	}

	overall := models.HealthStatusOK
	if dbStatus != models.HealthStatusOK {
		overall = models.HealthStatusDegraded
	}

	status := models.SystemStatus{
		Status: overall,
		Time:   now,
		Subsystems: []models.SubsystemStatus{
			{Name: "postgres", Status: dbStatus, Detail: dbDetail},
		},
		Providers: []models.ProviderStatus{
			{Provider: h.providerName, Status: models.HealthStatusOK},
		},
	}
	response.JSON(w, r, http.StatusOK, status)
}
