// Package models - API request types and input validation.
package models

import (
	"errors"
	"strings"
)

// CheckRequest represents a request to admit-or-deny a (tenant, client,
// action) identity against its effective quota.
type CheckRequest struct {
	TenantID              string   `json:"tenant_id"`
	ClientID              string   `json:"client_id"`
	ActionType            string   `json:"action_type"`
	MaxRequests           *int     `json:"max_requests,omitempty"`
	WindowDurationSeconds *float64 `json:"window_duration_seconds,omitempty"`
}

// Validate checks required identifiers and any supplied fallback quota.
func (r *CheckRequest) Validate() error {
	if err := validateIdentifiers(r.TenantID, r.ClientID, r.ActionType); err != nil {
		return err
	}
	return validateFallbackQuota(r.MaxRequests, r.WindowDurationSeconds)
}

// Normalize trims whitespace from identifiers.
func (r *CheckRequest) Normalize() {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.ActionType = strings.TrimSpace(r.ActionType)
}

// StatusRequest represents a read-only quota status lookup.
type StatusRequest struct {
	TenantID              string
	ClientID              string
	ActionType            string
	MaxRequests           *int
	WindowDurationSeconds *float64
}

func (r *StatusRequest) Validate() error {
	if err := validateIdentifiers(r.TenantID, r.ClientID, r.ActionType); err != nil {
		return err
	}
	return validateFallbackQuota(r.MaxRequests, r.WindowDurationSeconds)
}

// SetGlobalRequest configures global concurrency and queue-size defaults.
type SetGlobalRequest struct {
	MaxGlobalConcurrent int `json:"max_global_concurrent"`
	MaxTenantQueueSize  int `json:"max_tenant_queue_size"`
}

func (r *SetGlobalRequest) Validate() error {
	if r.MaxGlobalConcurrent <= 0 {
		return errors.New("max_global_concurrent must be positive")
	}
	if r.MaxTenantQueueSize <= 0 {
		return errors.New("max_tenant_queue_size must be positive")
	}
	return nil
}

// SetQuotaRequest configures an action-level or client-level quota
// override depending on which endpoint it's submitted to.
type SetQuotaRequest struct {
	MaxRequests           int     `json:"max_requests"`
	WindowDurationSeconds float64 `json:"window_duration_seconds"`
}

func (r *SetQuotaRequest) Validate() error {
	if r.MaxRequests < 1 {
		return errors.New("max_requests must be >= 1")
	}
	if r.WindowDurationSeconds <= 0 {
		return errors.New("window_duration_seconds must be > 0")
	}
	return nil
}

func validateIdentifiers(tenant, client, action string) error {
	if strings.TrimSpace(tenant) == "" {
		return errors.New("tenant_id is required")
	}
	if strings.TrimSpace(client) == "" {
		return errors.New("client_id is required")
	}
	if strings.TrimSpace(action) == "" {
		return errors.New("action_type is required")
	}
	return nil
}

func validateFallbackQuota(maxRequests *int, windowSeconds *float64) error {
	if maxRequests == nil && windowSeconds == nil {
		return nil
	}
	if maxRequests == nil || windowSeconds == nil {
		return errors.New("max_requests and window_duration_seconds must be supplied together")
	}
	if *maxRequests < 1 {
		return errors.New("max_requests must be >= 1")
	}
	if *windowSeconds <= 0 {
		return errors.New("window_duration_seconds must be > 0")
	}
	return nil
}
