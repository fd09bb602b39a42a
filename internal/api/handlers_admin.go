package api

import (
	"encoding/json"
	"net/http"
	"time"

	"ratelimiter/internal/models"
	"ratelimiter/internal/ratelimit"

	"github.com/gorilla/mux"
)

// SetGlobal handles PUT /api/v1/config/global.
func (h *Handlers) SetGlobal(w http.ResponseWriter, r *http.Request) {
	var req models.SetGlobalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidConfig, err.Error())
		return
	}

	if err := h.engine.ConfigStore().SetGlobal(req.MaxGlobalConcurrent, req.MaxTenantQueueSize); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActionLimit handles PUT /api/v1/config/tenants/{tenant_id}/actions/{action_type}.
func (h *Handlers) SetActionLimit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenant, action := vars["tenant_id"], vars["action_type"]

	var req models.SetQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidConfig, err.Error())
		return
	}

	quota := ratelimit.Quota{
		MaxRequests:    req.MaxRequests,
		WindowDuration: time.Duration(req.WindowDurationSeconds * float64(time.Second)),
	}
	if err := h.engine.ConfigStore().SetActionLimit(tenant, action, quota); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteActionLimit handles DELETE /api/v1/config/tenants/{tenant_id}/actions/{action_type}.
func (h *Handlers) DeleteActionLimit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.engine.ConfigStore().RemoveActionLimit(vars["tenant_id"], vars["action_type"])
	w.WriteHeader(http.StatusNoContent)
}

// SetClientLimit handles PUT /api/v1/config/tenants/{tenant_id}/clients/{client_id}/actions/{action_type}.
func (h *Handlers) SetClientLimit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenant, client, action := vars["tenant_id"], vars["client_id"], vars["action_type"]

	var req models.SetQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidConfig, err.Error())
		return
	}

	quota := ratelimit.Quota{
		MaxRequests:    req.MaxRequests,
		WindowDuration: time.Duration(req.WindowDurationSeconds * float64(time.Second)),
	}
	if err := h.engine.ConfigStore().SetClientLimit(tenant, client, action, quota); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteClientLimit handles DELETE /api/v1/config/tenants/{tenant_id}/clients/{client_id}/actions/{action_type}.
func (h *Handlers) DeleteClientLimit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.engine.ConfigStore().RemoveClientLimit(vars["tenant_id"], vars["client_id"], vars["action_type"])
	w.WriteHeader(http.StatusNoContent)
}

// ConfigSnapshot handles GET /api/v1/config/snapshot.
func (h *Handlers) ConfigSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.ConfigStore().Snapshot()

	resp := models.ConfigSnapshotResponse{
		MaxGlobalConcurrent: snapshot.MaxGlobalConcurrent,
		MaxTenantQueueSize:  snapshot.MaxTenantQueueSize,
		ActionLimits:        make([]models.ActionLimitEntry, 0, len(snapshot.ActionLimits)),
		ClientLimits:        make([]models.ClientLimitEntry, 0, len(snapshot.ClientLimits)),
	}
	for _, e := range snapshot.ActionLimits {
		resp.ActionLimits = append(resp.ActionLimits, models.ActionLimitEntry{
			TenantID:      e.Tenant,
			ActionType:    e.Action,
			MaxRequests:   e.Quota.MaxRequests,
			WindowSeconds: e.Quota.WindowDuration.Seconds(),
		})
	}
	for _, e := range snapshot.ClientLimits {
		resp.ClientLimits = append(resp.ClientLimits, models.ClientLimitEntry{
			TenantID:      e.Tenant,
			ClientID:      e.Client,
			ActionType:    e.Action,
			MaxRequests:   e.Quota.MaxRequests,
			WindowSeconds: e.Quota.WindowDuration.Seconds(),
		})
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}
