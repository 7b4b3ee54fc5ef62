// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// nonRetriable is implemented by errors no amount of retrying can fix,
// such as unparseable CLI output. They propagate on the first attempt.
type nonRetriable interface {
	NonRetriable()
}

// RetryPolicy controls how an operation is retried after a failure.
// Delays grow exponentially from BaseDelay up to MaxDelay, optionally
// randomized by +-50% to avoid thundering herds.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// Delay returns the backoff delay before the given attempt.
// Attempts are numbered starting from 1; the delay applies after attempt n fails.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64() //#nosec G404
	}
	return time.Duration(d)
}

// Retry runs op up to MaxAttempts times, sleeping between attempts.
// It stops early when ctx is canceled or when op succeeds.
func (p *RetryPolicy) Retry(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		// a failure after the caller gave up is not worth retrying; an
		// operation's own deadline expiring is, so only the outer context
		// decides
		if ctx.Err() != nil {
			return lastErr
		}
		var permanent nonRetriable
		if errors.As(lastErr, &permanent) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Wrapf(lastErr, "giving up after %d attempts", p.MaxAttempts)
}
