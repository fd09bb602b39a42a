package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
)

// tenantQueue is a tenant's FIFO of queued work. All access goes
// through LoadManager.queuesMu; there is no separate per-queue lock,
// since every queue operation also needs to touch the shared rotation
// slice under the same invariant (rotation membership mirrors queue
// emptiness).
type tenantQueue struct {
	items []*PendingRequest
}

// LoadManager tracks global in-flight concurrency and per-tenant FIFO
// queues, and runs a single dispatcher loop that drains queued work
// under a round-robin fairness policy as slots free up.
type LoadManager struct {
	configStore *ConfigStore

	mu             sync.Mutex
	globalInFlight int

	queuesMu sync.Mutex
	queues   map[string]*tenantQueue
	rotation []string
	cursor   int

	wake       chan struct{}
	shutdownCh chan struct{}
	shutdownOnce sync.Once
	shuttingDown int32
	doneCh       chan struct{}
	workersDone  chan struct{}

	jobs    chan *PendingRequest
	workers int
	process func(*PendingRequest)
}

// NewLoadManager builds a LoadManager reading its global concurrency
// and queue-size limits live from configStore, and dispatching ready
// work to process - the facade's "acquire slot already held, run the
// Window Registry, release the slot, signal the verdict" closure.
func NewLoadManager(configStore *ConfigStore, workers int, process func(*PendingRequest)) *LoadManager {
	return &LoadManager{
		configStore: configStore,
		queues:      make(map[string]*tenantQueue),
		wake:        make(chan struct{}, 1),
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
		workersDone: make(chan struct{}),
		jobs:        make(chan *PendingRequest),
		workers:     workers,
		process:     process,
	}
}

// Start launches the worker pool and the dispatcher loop. Must be
// called once before any Enqueue/TryAcquireSlot traffic arrives.
func (lm *LoadManager) Start() {
	var wg sync.WaitGroup
	for i := 0; i < lm.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.runWorker()
		}()
	}
	go func() {
		wg.Wait()
		close(lm.workersDone)
	}()
	go lm.dispatchLoop()
}

func (lm *LoadManager) runWorker() {
	for p := range lm.jobs {
		lm.process(p)
	}
}

// TryAcquireSlot atomically increments global_in_flight if under the
// current cap (read live from the config store) and reports success.
func (lm *LoadManager) TryAcquireSlot() bool {
	maxConcurrent, _ := lm.configStore.GlobalLimits()
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.globalInFlight < maxConcurrent {
		lm.globalInFlight++
		return true
	}
	return false
}

// ReleaseSlot decrements global_in_flight and wakes the dispatcher.
func (lm *LoadManager) ReleaseSlot() {
	lm.mu.Lock()
	lm.globalInFlight--
	lm.mu.Unlock()
	lm.signalWake()
}

func (lm *LoadManager) GlobalInFlight() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.globalInFlight
}

func (lm *LoadManager) signalWake() {
	select {
	case lm.wake <- struct{}{}:
	default:
	}
}

func (lm *LoadManager) isShuttingDown() bool {
	return atomic.LoadInt32(&lm.shuttingDown) != 0
}

// Enqueue appends pending to tenant's queue, registering the tenant in
// the fairness rotation if this is its first queued item. Returns
// QueueFull if the tenant's queue is already at capacity, or
// ShuttingDown if shutdown has begun.
func (lm *LoadManager) Enqueue(tenant string, pending *PendingRequest) error {
	if lm.isShuttingDown() {
		return NewShuttingDownError()
	}

	_, maxQueueSize := lm.configStore.GlobalLimits()

	lm.queuesMu.Lock()
	defer lm.queuesMu.Unlock()

	q, ok := lm.queues[tenant]
	if !ok {
		q = &tenantQueue{}
		lm.queues[tenant] = q
	}
	if len(q.items) >= maxQueueSize {
		return NewQueueFullError(tenant)
	}

	wasEmpty := len(q.items) == 0
	q.items = append(q.items, pending)
	if wasEmpty {
		lm.rotation = append(lm.rotation, tenant)
	}

	lm.signalWake()
	return nil
}

func (lm *LoadManager) QueueDepth(tenant string) int {
	lm.queuesMu.Lock()
	defer lm.queuesMu.Unlock()
	q, ok := lm.queues[tenant]
	if !ok {
		return 0
	}
	return len(q.items)
}

// RemovePending splices pending out of tenant's queue if it is still
// sitting there, adjusting the fairness rotation exactly as dequeueNext
// would if the tenant's queue empties as a result. Reports whether the
// item was found - false means it has already been dequeued for
// dispatch (or completed), and the caller should let that in-flight
// operation finish and discard its eventual verdict instead.
func (lm *LoadManager) RemovePending(tenant, id string) bool {
	lm.queuesMu.Lock()
	defer lm.queuesMu.Unlock()

	q, ok := lm.queues[tenant]
	if !ok {
		return false
	}

	idx := -1
	for i, p := range q.items {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	q.items = append(q.items[:idx], q.items[idx+1:]...)
	if len(q.items) != 0 {
		return true
	}

	for ri, t := range lm.rotation {
		if t != tenant {
			continue
		}
		lm.rotation = append(lm.rotation[:ri], lm.rotation[ri+1:]...)
		switch {
		case len(lm.rotation) == 0:
			lm.cursor = 0
		case ri < lm.cursor:
			lm.cursor--
		case lm.cursor >= len(lm.rotation):
			lm.cursor = 0
		}
		break
	}
	return true
}

// dequeueNext pops the head of the tenant currently at the cursor,
// advancing the cursor to the next tenant in rotation (round-robin).
// A tenant whose queue empties is removed from the rotation; its
// successor takes its slot without the cursor skipping a beat.
func (lm *LoadManager) dequeueNext() (*PendingRequest, bool) {
	lm.queuesMu.Lock()
	defer lm.queuesMu.Unlock()

	if len(lm.rotation) == 0 {
		return nil, false
	}
	if lm.cursor >= len(lm.rotation) {
		lm.cursor = 0
	}

	tenant := lm.rotation[lm.cursor]
	q := lm.queues[tenant]
	p := q.items[0]
	q.items = q.items[1:]

	if len(q.items) == 0 {
		lm.rotation = append(lm.rotation[:lm.cursor], lm.rotation[lm.cursor+1:]...)
		if len(lm.rotation) > 0 {
			lm.cursor %= len(lm.rotation)
		} else {
			lm.cursor = 0
		}
	} else {
		lm.cursor = (lm.cursor + 1) % len(lm.rotation)
	}

	return p, true
}

// dispatchLoop is the single logical dispatcher: it wakes on a slot
// release or an enqueue, then drains as many queued items as there are
// free slots, round-robin across tenants.
func (lm *LoadManager) dispatchLoop() {
	defer close(lm.doneCh)
	for {
		select {
		case <-lm.shutdownCh:
			lm.drainOnShutdown()
			close(lm.jobs)
			return
		case <-lm.wake:
		}

		for {
			if !lm.TryAcquireSlot() {
				break
			}
			p, ok := lm.dequeueNext()
			if !ok {
				lm.ReleaseSlot()
				break
			}
			lm.jobs <- p
		}
	}
}

// drainOnShutdown rejects every PendingRequest still sitting in any
// tenant queue with a terminal ShuttingDown verdict.
func (lm *LoadManager) drainOnShutdown() {
	lm.queuesMu.Lock()
	defer lm.queuesMu.Unlock()

	for _, tenant := range lm.rotation {
		q := lm.queues[tenant]
		for _, p := range q.items {
			p.complete(rejectedVerdict(ReasonShuttingDown))
		}
		q.items = nil
	}
	lm.rotation = nil
	lm.cursor = 0
}

// Shutdown signals the dispatcher to stop draining new queue items,
// waits for it to reject everything still queued, and waits for all
// in-flight worker jobs to complete naturally.
func (lm *LoadManager) Shutdown(ctx context.Context) error {
	lm.shutdownOnce.Do(func() {
		atomic.StoreInt32(&lm.shuttingDown, 1)
		close(lm.shutdownCh)
	})

	select {
	case <-lm.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-lm.workersDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
