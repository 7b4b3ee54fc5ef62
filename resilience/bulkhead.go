// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrBulkheadFull is returned when both the execution slots and the wait queue are exhausted.
	ErrBulkheadFull = errors.New("bulkhead queue full")
	// ErrBulkheadTimeout is returned when a queued call waited longer than the bulkhead timeout.
	ErrBulkheadTimeout = errors.New("bulkhead acquire timed out")
)

// Bulkhead caps the number of concurrent executions of an operation class.
// Calls beyond MaxConcurrent wait in a bounded queue; calls beyond the queue
// are rejected immediately.
type Bulkhead struct {
	maxConcurrent int64
	maxQueue      int64
	timeout       time.Duration

	sem     *semaphore.Weighted
	waiting atomic.Int64
	active  atomic.Int64
}

func NewBulkhead(maxConcurrent, maxQueue int, timeout time.Duration) *Bulkhead {
	return &Bulkhead{
		maxConcurrent: int64(maxConcurrent),
		maxQueue:      int64(maxQueue),
		timeout:       timeout,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Active returns the number of executions currently holding a slot.
func (b *Bulkhead) Active() int64 { return b.active.Load() }

// Waiting returns the number of callers queued for a slot.
func (b *Bulkhead) Waiting() int64 { return b.waiting.Load() }

// Do runs op once a slot is acquired.
func (b *Bulkhead) Do(ctx context.Context, op func(context.Context) error) error {
	if !b.sem.TryAcquire(1) {
		// all slots busy, join the bounded queue
		if b.waiting.Add(1) > b.maxQueue {
			b.waiting.Add(-1)
			return ErrBulkheadFull
		}
		acquireCtx, cancel := context.WithTimeout(ctx, b.timeout)
		err := b.sem.Acquire(acquireCtx, 1)
		cancel()
		b.waiting.Add(-1)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrBulkheadTimeout
		}
	}

	b.active.Add(1)
	defer func() {
		b.active.Add(-1)
		b.sem.Release(1)
	}()
	return op(ctx)
}
