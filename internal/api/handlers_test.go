package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ratelimiter/internal/models"
	"ratelimiter/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	cs := ratelimit.NewConfigStore(10, 10)
	wr := ratelimit.NewWindowRegistry()
	rl := ratelimit.NewRateLimiter(cs, wr, ratelimit.SystemClock{}, 2)
	rl.Start()
	t.Cleanup(func() { rl.Shutdown(context.Background()) })
	return NewHandlers(rl)
}

func TestNewHandlers(t *testing.T) {
	h := newTestHandlers(t)
	assert.NotNil(t, h)
}

func TestHandlers_CheckAndConsume_Allowed(t *testing.T) {
	h := newTestHandlers(t)

	body, _ := json.Marshal(models.CheckRequest{
		TenantID: "acme", ClientID: "c1", ActionType: "send",
		MaxRequests: intPtr(3), WindowDurationSeconds: floatPtr(60),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratelimit/check", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CheckAndConsume(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)
	assert.Equal(t, "processed", resp.Status)
}

func TestHandlers_CheckAndConsume_InvalidJSON(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratelimit/check", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	h.CheckAndConsume(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_CheckAndConsume_MissingIdentifiers(t *testing.T) {
	h := newTestHandlers(t)

	body, _ := json.Marshal(models.CheckRequest{TenantID: "acme"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratelimit/check", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CheckAndConsume(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrorCodeInvalidInput, resp.Code)
}

func TestHandlers_CheckAndConsume_NoQuota(t *testing.T) {
	h := newTestHandlers(t)

	body, _ := json.Marshal(models.CheckRequest{TenantID: "acme", ClientID: "c1", ActionType: "send"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ratelimit/check", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CheckAndConsume(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrorCodeNoQuota, resp.Code)
}

func TestHandlers_Status(t *testing.T) {
	h := newTestHandlers(t)
	h.engine.ConfigStore().SetActionLimit("acme", "send", ratelimit.Quota{MaxRequests: 5, WindowDuration: time.Minute})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit/status?tenant_id=acme&client_id=c1&action_type=send", nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.RemainingRequests)
}

func TestHandlers_Status_MissingIdentifiers(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit/status", nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_Status_FallbackHint(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/ratelimit/status?tenant_id=acme&client_id=c1&action_type=send&max_requests=4&window_duration_seconds=60",
		nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.RemainingRequests)
	assert.Equal(t, 0, resp.CurrentUsage)
}

func TestHandlers_Status_CurrentUsageAfterConsume(t *testing.T) {
	h := newTestHandlers(t)
	h.engine.ConfigStore().SetActionLimit("acme", "send", ratelimit.Quota{MaxRequests: 5, WindowDuration: time.Minute})

	checkBody, _ := json.Marshal(models.CheckRequest{TenantID: "acme", ClientID: "c1", ActionType: "send"})
	checkReq := httptest.NewRequest(http.MethodPost, "/api/v1/ratelimit/check", bytes.NewReader(checkBody))
	checkRec := httptest.NewRecorder()
	h.CheckAndConsume(checkRec, checkReq)
	require.Equal(t, http.StatusOK, checkRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit/status?tenant_id=acme&client_id=c1&action_type=send", nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.RemainingRequests)
	assert.Equal(t, 1, resp.CurrentUsage)
}

func TestHandlers_Status_InvalidQuotaHintParam(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/ratelimit/status?tenant_id=acme&client_id=c1&action_type=send&max_requests=notanumber&window_duration_seconds=60",
		nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_HealthCheck(t *testing.T) {
	h := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusHealthy, resp.Status)
}

func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }
