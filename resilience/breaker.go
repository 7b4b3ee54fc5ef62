// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls outright.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerState is the tri-state of a circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast once consecutive failures cross FailureThreshold.
// After RecoveryTimeout it lets probe calls through (half-open); SuccessThreshold
// consecutive probe successes close it again, any probe failure reopens it.
type CircuitBreaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// State returns the current state, accounting for recovery timeout expiry.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

func (b *CircuitBreaker) currentState() BreakerState {
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.RecoveryTimeout {
		b.state = StateHalfOpen
		b.successes = 0
	}
	return b.state
}

// Do runs op under the breaker.
func (b *CircuitBreaker) Do(ctx context.Context, op func(context.Context) error) error {
	b.mu.Lock()
	if b.currentState() == StateOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == StateHalfOpen || b.failures >= b.FailureThreshold {
			b.state = StateOpen
		}
		return err
	}
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
		}
	case StateClosed:
		b.failures = 0
	}
	return nil
}
