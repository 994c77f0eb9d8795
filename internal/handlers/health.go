package handlers

import (
	"net/http"
	"time"

	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/platform/httpx"
	"github.com/quotedesk/checkout/internal/platform/requestctx"
	"github.com/quotedesk/checkout/internal/repositories"
	"go.uber.org/zap"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	readiness   repositories.HealthRepository
	now         func() time.Time
	startedAt   time.Time
	version     string
	environment string
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithReadiness sets the dependency checks behind /readyz.
func WithReadiness(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) { h.readiness = repo }
}

// WithHealthClock overrides the clock, for tests.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHealthBuildInfo annotates probe responses with the build version and environment.
func WithHealthBuildInfo(version, environment string, startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
		h.environment = environment
		if !startedAt.IsZero() {
			h.startedAt = startedAt
		}
	}
}

// NewHealthHandlers constructs probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	h.startedAt = h.now()
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	payload := map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.startedAt).Round(time.Second).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	if h.environment != "" {
		payload["environment"] = h.environment
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

// Readyz runs dependency checks. Only timed-out or cancelled checks make the service unready; a
// degraded catalog or store still lets the wizard serve traffic.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.readiness == nil {
		httpx.WriteJSON(w, http.StatusOK, domain.HealthReport{Status: domain.HealthStatusOK, Checks: map[string]domain.HealthCheck{}, GeneratedAt: h.now().UTC()})
		return
	}
	report, err := h.readiness.Collect(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("readiness collection failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("readiness_failed", "unable to collect readiness", http.StatusServiceUnavailable))
		return
	}
	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, report)
}
