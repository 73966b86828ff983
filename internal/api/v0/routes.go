// Package v0 provides the system endpoints of the device registry API:
// liveness, readiness, build and store information.
package v0

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/device-registry-server/internal/api/common"
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/versions"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
}

// HealthRouter creates a router for the system endpoints
func HealthRouter(svc service.DeviceService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)
	r.Get("/info", infoHandler(svc))

	return r
}

// healthHandler handles GET /health
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler handles GET /readiness. It reports 503 until the store
// is reachable and holds data.
func readinessHandler(svc service.DeviceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed",
				"error", err,
				"request_id", middleware.GetReqID(r.Context()),
			)
			common.WriteErrorResponse(w, "DeviceService not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

// versionHandler handles GET /version
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// infoHandler handles GET /info
func infoHandler(svc service.DeviceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to describe registry store",
				"error", err,
				"request_id", middleware.GetReqID(r.Context()),
			)
			common.WriteErrorResponse(w, "Failed to retrieve registry data", http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, info, http.StatusOK)
	}
}
