package workflow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
)

// RetryPolicy bounds how often a conflicting transaction is rerun.
// Attempts counts the first run.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  config.InvoiceRetryAttempts(),
		BaseDelay: 20 * time.Millisecond,
		MaxDelay:  500 * time.Millisecond,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		exp.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		exp.MaxInterval = p.MaxDelay
	}
	// the attempt count is the only bound
	exp.MaxElapsedTime = 0
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(attempts-1))
}

// retry runs fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. A cancelled context stops the loop with ctx.Err().
func retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, fn func(attempt int) error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(attempt)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
}

// isConflict matches lost invoice counter races, deadlocks and lock wait timeouts.
// The whole transaction is safe to rerun since every precondition is re-checked.
func isConflict(err error) bool {
	return utils.KindOf(err) == utils.KindConflict
}
