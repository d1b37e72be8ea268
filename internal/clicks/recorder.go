// Package clicks dispatches click accounting updates to the link store,
// either inline or through a bounded worker pool.
package clicks

import (
	"context"
	"errors"
	"time"
)

var (
	ErrQueueFull   = errors.New("click queue is full")
	ErrPoolStopped = errors.New("click pool is not running")
)

// Store is the slice of the link store the recorders need.
type Store interface {
	IncrementClicks(ctx context.Context, code string, now time.Time) error
}

// SyncRecorder applies the update before returning. The caller waits for
// the store round trip.
type SyncRecorder struct {
	store   Store
	timeout time.Duration
}

func NewSyncRecorder(store Store, timeout time.Duration) *SyncRecorder {
	return &SyncRecorder{store: store, timeout: timeout}
}

func (r *SyncRecorder) Record(ctx context.Context, code string, now time.Time) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.store.IncrementClicks(ctx, code, now)
}
