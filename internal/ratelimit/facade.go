package ratelimit

import (
	"context"
	"time"
)

// RateLimiter is the top-level entry point: it validates inputs,
// resolves the effective quota via the Config Store, asks the Load
// Manager for an admission slot, and consults the Window Registry -
// synchronously if a slot was free, or via the dispatcher once one
// frees up.
type RateLimiter struct {
	configStore    *ConfigStore
	windowRegistry *WindowRegistry
	loadManager    *LoadManager
	clock          Clock
}

// NewRateLimiter wires the three subsystems together. Start must be
// called before any traffic is admitted.
func NewRateLimiter(configStore *ConfigStore, windowRegistry *WindowRegistry, clock Clock, dispatcherWorkers int) *RateLimiter {
	rl := &RateLimiter{
		configStore:    configStore,
		windowRegistry: windowRegistry,
		clock:          clock,
	}
	rl.loadManager = NewLoadManager(configStore, dispatcherWorkers, rl.runQueued)
	return rl
}

func (rl *RateLimiter) Start() {
	rl.loadManager.Start()
}

func (rl *RateLimiter) Shutdown(ctx context.Context) error {
	return rl.loadManager.Shutdown(ctx)
}

// runQueued is handed to the Load Manager as the dispatcher's worker
// callback: it already holds an acquired slot, so it just runs the
// Window Registry, releases the slot, and signals the verdict.
func (rl *RateLimiter) runQueued(p *PendingRequest) {
	allowed, remaining, resetAt := rl.windowRegistry.CheckAndConsume(p.Key, p.Quota, rl.clock.Now())
	rl.loadManager.ReleaseSlot()
	p.complete(processedVerdict(allowed, remaining, resetAt))
}

// CheckAndConsume is the engine's single public write operation. It
// never returns a Queued verdict to the caller: on a queued path it
// blocks on the completion handle until the dispatcher resolves it or
// ctx is done.
func (rl *RateLimiter) CheckAndConsume(ctx context.Context, tenant, client, action string, fallback *Quota) (Verdict, error) {
	if err := validateIdentifiers(tenant, client, action); err != nil {
		return Verdict{}, err
	}
	if err := validateFallback(fallback); err != nil {
		return Verdict{}, err
	}

	quota, err := rl.configStore.Resolve(tenant, client, action, fallback)
	if err != nil {
		return Verdict{}, err
	}

	key := RateKey{TenantID: tenant, ClientID: client, ActionType: action}

	if rl.loadManager.TryAcquireSlot() {
		allowed, remaining, resetAt := rl.windowRegistry.CheckAndConsume(key, quota, rl.clock.Now())
		rl.loadManager.ReleaseSlot()
		return processedVerdict(allowed, remaining, resetAt), nil
	}

	pending := newPendingRequest(key, quota, rl.clock.Now())
	if err := rl.loadManager.Enqueue(tenant, pending); err != nil {
		return Verdict{}, err
	}

	verdict, err := pending.wait(ctx)
	if err != nil {
		// ctx was cancelled before the dispatcher resolved pending. If
		// it's still sitting in its tenant queue, splice it out so it
		// never consumes a Window Registry slot for a caller who's
		// gone. If it's already been dequeued, let that in-flight
		// Window Registry operation complete and discard its verdict -
		// pending.done is buffered, so runQueued's send never blocks.
		rl.loadManager.RemovePending(tenant, pending.ID)
		return Verdict{}, err
	}
	// A queued request drained by shutdown surfaces as a ShuttingDown
	// error, the same way a full queue surfaces as a QueueFull error.
	if verdict.Status == VerdictRejected && verdict.Reason == ReasonShuttingDown {
		return verdict, NewShuttingDownError()
	}
	return verdict, nil
}

// Status is the read-only counterpart: it resolves the quota and
// peeks the Window Registry without ever acquiring a slot or
// enqueueing. ctx is accepted for interface symmetry with
// CheckAndConsume and decorator tracing; the lookup itself is
// synchronous and never blocks on it. currentUsage is the resolved
// quota's MaxRequests minus remaining - the count of requests already
// admitted within the current window.
func (rl *RateLimiter) Status(ctx context.Context, tenant, client, action string, fallback *Quota) (remaining int, resetAt time.Time, currentUsage int, err error) {
	if err := validateIdentifiers(tenant, client, action); err != nil {
		return 0, time.Time{}, 0, err
	}
	if err := validateFallback(fallback); err != nil {
		return 0, time.Time{}, 0, err
	}

	quota, err := rl.configStore.Resolve(tenant, client, action, fallback)
	if err != nil {
		return 0, time.Time{}, 0, err
	}

	key := RateKey{TenantID: tenant, ClientID: client, ActionType: action}
	remaining, resetAt = rl.windowRegistry.Peek(key, quota, rl.clock.Now())
	return remaining, resetAt, quota.MaxRequests - remaining, nil
}

// ActiveRateKeys reports the Window Registry's total tracked-key
// count, used by the health handler.
func (rl *RateLimiter) ActiveRateKeys() int {
	return rl.windowRegistry.ActiveKeyCount()
}

func (rl *RateLimiter) GlobalInFlight() int {
	return rl.loadManager.GlobalInFlight()
}

func (rl *RateLimiter) TenantQueueDepth(tenant string) int {
	return rl.loadManager.QueueDepth(tenant)
}

func (rl *RateLimiter) ConfigStore() *ConfigStore {
	return rl.configStore
}

func validateIdentifiers(tenant, client, action string) error {
	if tenant == "" {
		return NewInvalidInputError("tenant_id is required")
	}
	if client == "" {
		return NewInvalidInputError("client_id is required")
	}
	if action == "" {
		return NewInvalidInputError("action_type is required")
	}
	return nil
}

func validateFallback(fallback *Quota) error {
	if fallback == nil {
		return nil
	}
	if fallback.MaxRequests < 1 {
		return NewInvalidInputError("max_requests must be >= 1")
	}
	if fallback.WindowDuration <= 0 {
		return NewInvalidInputError("window_duration_seconds must be > 0")
	}
	return nil
}
