package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/etudehq/etude-auth/internal/database"
)

// Pinger is implemented by optional backends (the Redis revocation
// registry) that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the dependencies of the authorization server. The
// database is critical; the revocation cache is optional and only degrades
// the status.
type Checker struct {
	DB     *database.Database
	Cache  Pinger
	Logger *slog.Logger
}

func NewChecker(db *database.Database, cache Pinger, logger *slog.Logger) Checker {
	return Checker{
		DB:     db,
		Cache:  cache,
		Logger: logger,
	}
}

type Status struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Critical bool   `json:"critical"`
}

// CheckHealth probes every dependency.
func (h *Checker) CheckHealth(ctx context.Context) Status {
	components := map[string]ComponentHealth{
		"database": h.checkDatabase(ctx),
	}

	if h.Cache != nil {
		components["revocation_cache"] = h.checkCache(ctx)
	}

	return Status{
		Status:     overallStatus(components),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
}

// CheckLiveness only verifies the process is responsive.
func (h *Checker) CheckLiveness(_ context.Context) Status {
	return Status{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Components: map[string]ComponentHealth{
			"process": {
				Status:   "healthy",
				Message:  "service is responsive",
				Critical: true,
			},
		},
	}
}

// CheckReadiness only probes critical dependencies.
func (h *Checker) CheckReadiness(ctx context.Context) Status {
	components := map[string]ComponentHealth{
		"database": h.checkDatabase(ctx),
	}

	return Status{
		Status:     overallStatus(components),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
}

func (h *Checker) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := h.DB.Ping(ctx); err != nil {
		h.Logger.ErrorContext(ctx, "database health check failed", "error", err)
		return ComponentHealth{
			Status:   "unhealthy",
			Message:  "database unreachable",
			Critical: true,
		}
	}

	return ComponentHealth{
		Status:   "healthy",
		Critical: true,
	}
}

func (h *Checker) checkCache(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.Cache.Ping(ctx); err != nil {
		h.Logger.WarnContext(ctx, "revocation cache health check failed", "error", err)
		return ComponentHealth{
			Status:   "degraded",
			Message:  "revocation cache unreachable",
			Critical: false,
		}
	}

	return ComponentHealth{
		Status:   "healthy",
		Critical: false,
	}
}

func overallStatus(components map[string]ComponentHealth) string {
	status := "healthy"
	for _, component := range components {
		if component.Status == "unhealthy" && component.Critical {
			return "unhealthy"
		}
		if component.Status != "healthy" {
			status = "degraded"
		}
	}
	return status
}
