package retry

import (
	"context"
	"math/rand"
	"time"
)

// Options configures retry behavior.
type Options struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// Defaults provides sensible retry defaults for upstream calls.
var Defaults = Options{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Do runs fn up to MaxAttempts times with exponential backoff between
// attempts. A nil retryable treats every error as transient; otherwise
// a non-retryable error is returned immediately without burning the
// remaining attempts. The last error is returned once attempts are
// exhausted, so callers can tell exhaustion from a terminal error by
// re-checking retryable on the result.
func Do(ctx context.Context, opts Options, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	wait := opts.InitialWait

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return err
}
