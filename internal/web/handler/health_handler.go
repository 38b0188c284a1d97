package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/etudehq/etude-auth/internal/health"
	"github.com/etudehq/etude-auth/internal/web/response"
)

type HealthHandler struct {
	HealthChecker *health.Checker
}

func NewHealthHandler(healthChecker *health.Checker) HealthHandler {
	return HealthHandler{
		HealthChecker: healthChecker,
	}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/health/live", h.HandleLiveness)
	mux.HandleFunc("/health/ready", h.HandleReadiness)
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.HealthChecker.CheckHealth(ctx)

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	h.writeStatus(w, status)
}

func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := h.HealthChecker.CheckLiveness(ctx)

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	h.writeStatus(w, status)
}

func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.HealthChecker.CheckReadiness(ctx)

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	h.writeStatus(w, status)
}

func (h *HealthHandler) writeStatus(w http.ResponseWriter, status health.Status) {
	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	response.JSONResponse(w, httpStatus, status)
}
