package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ratelimiter/internal/models"
	"ratelimiter/internal/ratelimit"
)

// Engine is the subset of the rate limiting engine the HTTP layer
// depends on. Both *ratelimit.RateLimiter and its observability
// decorator satisfy it.
type Engine interface {
	CheckAndConsume(ctx context.Context, tenant, client, action string, fallback *ratelimit.Quota) (ratelimit.Verdict, error)
	Status(ctx context.Context, tenant, client, action string, fallback *ratelimit.Quota) (remaining int, resetAt time.Time, currentUsage int, err error)
	ActiveRateKeys() int
	GlobalInFlight() int
	TenantQueueDepth(tenant string) int
	ConfigStore() *ratelimit.ConfigStore
}

// Handlers contains the HTTP handlers for the rate limiting API.
type Handlers struct {
	engine Engine
}

// NewHandlers creates a new handlers instance.
func NewHandlers(engine Engine) *Handlers {
	return &Handlers{engine: engine}
}

// fallbackFromRequest builds a *ratelimit.Quota from the optional
// inline quota fields, or nil if none were supplied.
func fallbackFromRequest(maxRequests *int, windowSeconds *float64) *ratelimit.Quota {
	if maxRequests == nil || windowSeconds == nil {
		return nil
	}
	return &ratelimit.Quota{
		MaxRequests:    *maxRequests,
		WindowDuration: time.Duration(*windowSeconds * float64(time.Second)),
	}
}

// CheckAndConsume handles POST /api/v1/ratelimit/check.
func (h *Handlers) CheckAndConsume(w http.ResponseWriter, r *http.Request) {
	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "invalid JSON body")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidInput, err.Error())
		return
	}

	fallback := fallbackFromRequest(req.MaxRequests, req.WindowDurationSeconds)
	verdict, err := h.engine.CheckAndConsume(r.Context(), req.TenantID, req.ClientID, req.ActionType, fallback)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	statusCode := http.StatusOK
	if !verdict.Allowed {
		statusCode = http.StatusTooManyRequests
	}
	h.writeJSONResponse(w, statusCode, checkResponseFromVerdict(verdict))
}

// Status handles GET /api/v1/ratelimit/status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.StatusRequest{
		TenantID:   q.Get("tenant_id"),
		ClientID:   q.Get("client_id"),
		ActionType: q.Get("action_type"),
	}

	maxRequests, err := parseIntParam(q, "max_requests")
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidInput, err.Error())
		return
	}
	req.MaxRequests = maxRequests

	windowSeconds, err := parseFloatParam(q, "window_duration_seconds")
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidInput, err.Error())
		return
	}
	req.WindowDurationSeconds = windowSeconds

	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidInput, err.Error())
		return
	}

	fallback := fallbackFromRequest(req.MaxRequests, req.WindowDurationSeconds)
	remaining, resetAt, currentUsage, err := h.engine.Status(r.Context(), req.TenantID, req.ClientID, req.ActionType, fallback)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.StatusResponse{
		RemainingRequests: remaining,
		ResetTimeSeconds:  float64(time.Until(resetAt).Seconds()),
		CurrentUsage:      currentUsage,
	})
}

// parseIntParam parses an optional query parameter as *int, returning
// a nil pointer when the parameter is absent and an error when it's
// present but not a valid integer.
func parseIntParam(q url.Values, name string) (*int, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &v, nil
}

// parseFloatParam parses an optional query parameter as *float64,
// returning a nil pointer when the parameter is absent and an error
// when it's present but not a valid number.
func parseFloatParam(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

// HealthCheck handles GET /health and GET /api/v1/health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.NewHealthCheckResponse(models.StatusHealthy)
	resp.AddComponent("engine", models.StatusHealthy, "Rate limiting engine is operational")
	resp.AddMetric("global_in_flight", h.engine.GlobalInFlight())
	resp.AddMetric("active_rate_keys", h.engine.ActiveRateKeys())

	h.writeJSONResponse(w, http.StatusOK, resp)
}

func checkResponseFromVerdict(v ratelimit.Verdict) models.CheckResponse {
	return models.CheckResponse{
		Allowed:          v.Allowed,
		RemainingRequest: v.Remaining,
		ResetTimeSeconds: time.Until(v.ResetAt).Seconds(),
		Status:           string(v.Status),
	}
}

// writeJSONResponse writes a JSON response.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes an error response with an explicit status and code.
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceError maps a *ratelimit.ServiceError to its HTTP status
// and error code, falling back to 500/INTERNAL_ERROR for anything else.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	svcErr, ok := err.(*ratelimit.ServiceError)
	if !ok {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}

	h.writeErrorResponse(w, svcErr.StatusCode, errorCodeForKind(svcErr.Kind), svcErr.Message)
}

func errorCodeForKind(kind string) string {
	switch kind {
	case ratelimit.KindInvalidInput:
		return models.ErrorCodeInvalidInput
	case ratelimit.KindNoQuota:
		return models.ErrorCodeNoQuota
	case ratelimit.KindInvalidConfig:
		return models.ErrorCodeInvalidConfig
	case ratelimit.KindQueueFull:
		return models.ErrorCodeQueueFull
	case ratelimit.KindShuttingDown:
		return models.ErrorCodeShuttingDown
	default:
		return models.ErrorCodeInternalError
	}
}
