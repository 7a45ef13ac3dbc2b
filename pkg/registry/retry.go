package registry

import (
	"context"
	"time"

	"github.com/cenk/backoff"
)

// Default retry policy for registry calls.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Retrier re-runs a failing operation a fixed number of times with a
// constant delay between attempts.
type Retrier struct {
	Attempts int           // Total attempts including the first; min 1
	Delay    time.Duration // Pause between attempts
}

// DefaultRetrier is the policy used by [Retry].
var DefaultRetrier = Retrier{Attempts: DefaultAttempts, Delay: DefaultDelay}

// Do runs fn until it succeeds, the attempts are used up or ctx is done.
// Every error is retried. The last error is returned.
func (r Retrier) Do(ctx context.Context, fn func() error) error {
	attempts := max(r.Attempts, 1)
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.Delay), uint64(attempts-1)),
		ctx,
	)
	err := backoff.Retry(fn, b)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Retry runs fn with the default policy: 3 attempts, 1s apart.
func Retry(ctx context.Context, fn func() error) error {
	return DefaultRetrier.Do(ctx, fn)
}
