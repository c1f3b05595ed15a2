package services

import "time"

const (
	DefaultMaxAttempts    = 3
	DefaultBackoff        = 1 * time.Second
	DefaultAttemptTimeout = 5 * time.Second
)

// RetryPolicy bounds the delivery attempts of a single send.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// AttemptTimeout caps one delivery call. Zero leaves only the transport timeout.
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		Backoff:        FixedBackoff(DefaultBackoff),
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// FixedBackoff waits d after every failed attempt.
func FixedBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = FixedBackoff(DefaultBackoff)
	}
	return p
}
