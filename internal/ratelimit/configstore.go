package ratelimit

import "sync"

type actionKey struct {
	Tenant string
	Action string
}

type clientKey struct {
	Tenant string
	Client string
	Action string
}

// ConfigStore holds global defaults and the two tiers of quota
// override (per tenant-action, per tenant-client-action) and resolves
// the effective quota for a given lookup. Last-write-wins; there is no
// field-level merging between tiers, only whole-Quota replacement.
type ConfigStore struct {
	mu                  sync.RWMutex
	maxGlobalConcurrent int
	maxTenantQueueSize  int
	actionLimits        map[actionKey]Quota
	clientLimits        map[clientKey]Quota
}

func NewConfigStore(maxGlobalConcurrent, maxTenantQueueSize int) *ConfigStore {
	return &ConfigStore{
		maxGlobalConcurrent: maxGlobalConcurrent,
		maxTenantQueueSize:  maxTenantQueueSize,
		actionLimits:        make(map[actionKey]Quota),
		clientLimits:        make(map[clientKey]Quota),
	}
}

// SetGlobal updates the global concurrency cap and per-tenant queue
// size. Takes effect on the next Load Manager admission decision; it
// never retroactively shrinks any in-flight set.
func (c *ConfigStore) SetGlobal(maxGlobalConcurrent, maxTenantQueueSize int) error {
	if maxGlobalConcurrent <= 0 {
		return NewInvalidConfigError("max_global_concurrent must be positive", nil)
	}
	if maxTenantQueueSize <= 0 {
		return NewInvalidConfigError("max_tenant_queue_size must be positive", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxGlobalConcurrent = maxGlobalConcurrent
	c.maxTenantQueueSize = maxTenantQueueSize
	return nil
}

func (c *ConfigStore) GlobalLimits() (maxGlobalConcurrent, maxTenantQueueSize int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxGlobalConcurrent, c.maxTenantQueueSize
}

func (c *ConfigStore) SetActionLimit(tenant, action string, quota Quota) error {
	if err := quota.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actionLimits[actionKey{Tenant: tenant, Action: action}] = quota
	return nil
}

func (c *ConfigStore) RemoveActionLimit(tenant, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.actionLimits, actionKey{Tenant: tenant, Action: action})
}

func (c *ConfigStore) SetClientLimit(tenant, client, action string, quota Quota) error {
	if err := quota.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientLimits[clientKey{Tenant: tenant, Client: client, Action: action}] = quota
	return nil
}

func (c *ConfigStore) RemoveClientLimit(tenant, client, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clientLimits, clientKey{Tenant: tenant, Client: client, Action: action})
}

// Resolve applies the fixed precedence: client override, then action
// limit, then the caller-supplied fallback. Fails with NoQuota if none
// apply.
func (c *ConfigStore) Resolve(tenant, client, action string, fallback *Quota) (Quota, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if q, ok := c.clientLimits[clientKey{Tenant: tenant, Client: client, Action: action}]; ok {
		return q, nil
	}
	if q, ok := c.actionLimits[actionKey{Tenant: tenant, Action: action}]; ok {
		return q, nil
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Quota{}, NewNoQuotaError("no quota configured for tenant=" + tenant + " client=" + client + " action=" + action)
}

// ConfigSnapshot is a structured, point-in-time read-back of store
// state for administrative inspection.
type ConfigSnapshot struct {
	MaxGlobalConcurrent int
	MaxTenantQueueSize  int
	ActionLimits        []ActionLimitEntry
	ClientLimits        []ClientLimitEntry
}

type ActionLimitEntry struct {
	Tenant string
	Action string
	Quota  Quota
}

type ClientLimitEntry struct {
	Tenant string
	Client string
	Action string
	Quota  Quota
}

func (c *ConfigStore) Snapshot() ConfigSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := ConfigSnapshot{
		MaxGlobalConcurrent: c.maxGlobalConcurrent,
		MaxTenantQueueSize:  c.maxTenantQueueSize,
	}
	for k, q := range c.actionLimits {
		snapshot.ActionLimits = append(snapshot.ActionLimits, ActionLimitEntry{Tenant: k.Tenant, Action: k.Action, Quota: q})
	}
	for k, q := range c.clientLimits {
		snapshot.ClientLimits = append(snapshot.ClientLimits, ClientLimitEntry{Tenant: k.Tenant, Client: k.Client, Action: k.Action, Quota: q})
	}
	return snapshot
}
