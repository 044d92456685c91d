package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clovermart/api/internal/platform/auth"
	"github.com/clovermart/api/internal/platform/httpx"
	"github.com/clovermart/api/internal/services"
)

// InternalHandlers exposes operator-only utilities: the full dependency health
// report and the shared sequence counters.
type InternalHandlers struct {
	authn  *auth.Authenticator
	system services.SystemService
}

// NewInternalHandlers constructs the internal handler set.
func NewInternalHandlers(authn *auth.Authenticator, system services.SystemService) *InternalHandlers {
	return &InternalHandlers{
		authn:  authn,
		system: system,
	}
}

// Routes wires the /internal endpoints onto the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/health", h.healthReport)
	r.Post("/counters/{counterId}/next", h.nextCounterValue)
}

func (h *InternalHandlers) healthReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !isAdmin(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "admin role required", http.StatusForbidden))
		return
	}
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_unavailable", "system service is unavailable", http.StatusServiceUnavailable))
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_unavailable", "health checks failed", http.StatusServiceUnavailable))
		return
	}

	payload := healthReportPayload{
		Status:      string(report.Status),
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
		GeneratedAt: formatTime(report.GeneratedAt),
	}
	for name, check := range report.Checks {
		payload.Checks[name] = healthCheckPayload{
			Status:  string(check.Status),
			Detail:  check.Detail,
			Latency: check.Latency.String(),
		}
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *InternalHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !isAdmin(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "admin role required", http.StatusForbidden))
		return
	}
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_unavailable", "system service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req nextCounterRequest
	if body, err := readLimitedBody(r, defaultBodyLimit); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	value, err := h.system.NextCounterValue(ctx, services.CounterCommand{
		CounterID: chi.URLParam(r, "counterId"),
		Step:      req.Step,
	})
	if err != nil {
		if errors.Is(err, services.ErrSystemInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("counter_error", "failed to advance counter", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, nextCounterResponse{Value: value})
}

type nextCounterRequest struct {
	Step int64 `json:"step"`
}

type nextCounterResponse struct {
	Value int64 `json:"value"`
}
