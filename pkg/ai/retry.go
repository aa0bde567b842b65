package ai

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy decides how often and how patiently transient failures are retried.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter returns the random extra delay added to a computed backoff.
	Jitter func(time.Duration) time.Duration
	// Transient reports whether a failed attempt may be retried.
	Transient func(error) bool
}

// DefaultRetryPolicy retries twice starting at 500ms with full jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Jitter:     FullJitter,
		Transient:  IsTransient,
	}
}

// FullJitter returns a random duration in [0, d).
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// NoJitter disables jitter.
func NoJitter(time.Duration) time.Duration {
	return 0
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 8 * time.Second
	}
	if p.Jitter == nil {
		p.Jitter = FullJitter
	}
	if p.Transient == nil {
		p.Transient = IsTransient
	}
	return p
}

// Backoff returns the wait before retry number n (starting at 1).
func (p RetryPolicy) Backoff(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	delay := p.BaseDelay
	for i := 1; i < n && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay + p.Jitter(delay)
}

// Do runs fn until it succeeds, fails non-transiently, or the retries are exhausted.
// It returns the number of attempts made together with the last error. No attempt is
// started once ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	p = p.normalized()

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if attempts > p.MaxRetries || !p.Transient(err) || ctx.Err() != nil {
			return attempts, err
		}

		timer := time.NewTimer(p.Backoff(attempts))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, err
		case <-timer.C:
		}
	}
}
