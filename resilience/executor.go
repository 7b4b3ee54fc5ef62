// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package resilience combines retries, circuit breaking and bulkhead isolation
// into named executors. An executor wraps an operation as
// retry(circuit(bulkhead(op))), so every retry attempt re-checks the breaker
// and re-acquires a bulkhead slot.
package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/asi-chain/asi-indexer/log"
	"github.com/asi-chain/asi-indexer/metrics"
)

var logger = log.WithContext("pkg", "resilience")

var (
	metricCalls = metrics.LazyLoadCounterVec("resilience_calls_total", []string{"executor", "outcome"})
	metricState = metrics.LazyLoadGaugeVec("resilience_breaker_state", []string{"executor"})
)

// Executor applies a retry policy, a circuit breaker and an optional bulkhead
// to every operation submitted through Execute.
type Executor struct {
	name     string
	retry    *RetryPolicy
	breaker  *CircuitBreaker
	bulkhead *Bulkhead

	calls     atomic.Int64
	failures  atomic.Int64
	rejected  atomic.Int64
	succeeded atomic.Int64
}

// ExecutorStats is a point-in-time snapshot of an executor's counters.
type ExecutorStats struct {
	Name         string       `json:"name"`
	Calls        int64        `json:"calls"`
	Succeeded    int64        `json:"succeeded"`
	Failed       int64        `json:"failed"`
	Rejected     int64        `json:"rejected"`
	BreakerState BreakerState `json:"-"`
	Breaker      string       `json:"breaker_state"`
	Active       int64        `json:"active"`
	Waiting      int64        `json:"waiting"`
}

// NewExecutor builds an executor from its parts. bulkhead may be nil.
func NewExecutor(name string, retry *RetryPolicy, breaker *CircuitBreaker, bulkhead *Bulkhead) *Executor {
	return &Executor{
		name:     name,
		retry:    retry,
		breaker:  breaker,
		bulkhead: bulkhead,
	}
}

// NewNodeExecutor returns the executor guarding calls into the node CLI.
// Node calls are slow and flaky, so attempts are few with long backoff and
// concurrency is capped hard.
func NewNodeExecutor() *Executor {
	return NewExecutor(
		"node_operations",
		&RetryPolicy{
			MaxAttempts:     3,
			BaseDelay:       500 * time.Millisecond,
			MaxDelay:        10 * time.Second,
			ExponentialBase: 2.0,
			Jitter:          true,
		},
		&CircuitBreaker{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 2,
		},
		NewBulkhead(10, 50, 30*time.Second),
	)
}

// NewDatabaseExecutor returns the executor guarding local store operations.
// The store is local and fast, so retries are cheap and no bulkhead is needed.
func NewDatabaseExecutor() *Executor {
	return NewExecutor(
		"database_operations",
		&RetryPolicy{
			MaxAttempts:     5,
			BaseDelay:       100 * time.Millisecond,
			MaxDelay:        5 * time.Second,
			ExponentialBase: 1.5,
			Jitter:          true,
		},
		&CircuitBreaker{
			FailureThreshold: 10,
			RecoveryTimeout:  15 * time.Second,
			SuccessThreshold: 3,
		},
		nil,
	)
}

// Name returns the executor's name as used in logs and metric labels.
func (e *Executor) Name() string { return e.name }

// Execute runs op under the full policy stack.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	e.calls.Add(1)
	err := e.retry.Retry(ctx, func(ctx context.Context) error {
		return e.breaker.Do(ctx, func(ctx context.Context) error {
			if e.bulkhead == nil {
				return op(ctx)
			}
			return e.bulkhead.Do(ctx, op)
		})
	})

	state := e.breaker.State()
	metricState().SetWithLabel(int64(state), map[string]string{"executor": e.name})

	switch {
	case err == nil:
		e.succeeded.Add(1)
		metricCalls().AddWithLabel(1, map[string]string{"executor": e.name, "outcome": "ok"})
	case isRejection(err):
		e.rejected.Add(1)
		metricCalls().AddWithLabel(1, map[string]string{"executor": e.name, "outcome": "rejected"})
		logger.Warn("call rejected", "executor", e.name, "breaker", state, "err", err)
	default:
		e.failures.Add(1)
		metricCalls().AddWithLabel(1, map[string]string{"executor": e.name, "outcome": "failed"})
		logger.Debug("call failed", "executor", e.name, "breaker", state, "err", err)
	}
	return err
}

// Stats snapshots the executor's counters and breaker state.
func (e *Executor) Stats() ExecutorStats {
	state := e.breaker.State()
	s := ExecutorStats{
		Name:         e.name,
		Calls:        e.calls.Load(),
		Succeeded:    e.succeeded.Load(),
		Failed:       e.failures.Load(),
		Rejected:     e.rejected.Load(),
		BreakerState: state,
		Breaker:      state.String(),
	}
	if e.bulkhead != nil {
		s.Active = e.bulkhead.Active()
		s.Waiting = e.bulkhead.Waiting()
	}
	return s
}

func isRejection(err error) bool {
	for _, sentinel := range []error{ErrCircuitOpen, ErrBulkheadFull, ErrBulkheadTimeout} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
