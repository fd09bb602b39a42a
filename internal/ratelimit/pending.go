package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PendingRequest is a unit of queued work: a RateKey and the quota it
// was resolved against, plus a one-shot completion handle the
// dispatcher signals exactly once. The buffered channel of size 1 is
// the idiomatic Go one-shot future - a single send, a single receive,
// no close required.
type PendingRequest struct {
	ID         string
	Key        RateKey
	Quota      Quota
	EnqueuedAt time.Time
	done       chan Verdict
}

func newPendingRequest(key RateKey, quota Quota, enqueuedAt time.Time) *PendingRequest {
	return &PendingRequest{
		ID:         uuid.NewString(),
		Key:        key,
		Quota:      quota,
		EnqueuedAt: enqueuedAt,
		done:       make(chan Verdict, 1),
	}
}

// complete delivers the terminal verdict. Called at most once per
// PendingRequest, by the dispatcher or by shutdown drain.
func (p *PendingRequest) complete(v Verdict) {
	p.done <- v
}

// wait blocks until the dispatcher delivers a verdict or ctx is done.
// On context cancellation the PendingRequest may still be sitting in
// its tenant queue or mid-dispatch; the caller discards whatever
// verdict eventually arrives.
func (p *PendingRequest) wait(ctx context.Context) (Verdict, error) {
	select {
	case v := <-p.done:
		return v, nil
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	}
}
