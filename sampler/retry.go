package sampler

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy is a bounded exponential backoff applied to every transport call.
// A call is retried while the error is retryable, fewer than MaxTries attempts
// were made, and MaxElapsed has not been used up. The final wait is shortened
// so that no sleep extends past MaxElapsed.
type RetryPolicy struct {
	MaxTries          int
	MaxElapsed        time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration // 0 means uncapped
	BackoffMultiplier float64

	// Jitter randomizes each computed wait. Nil means full jitter,
	// a uniform draw from [0, wait].
	Jitter func(time.Duration) time.Duration

	// Retryable classifies errors. Nil means IsRetryable; RetryAll retries
	// everything but cancellation and config errors.
	Retryable func(error) bool
}

// DefaultRetryPolicy gives up after 6 tries or roughly 10 seconds.
var DefaultRetryPolicy = RetryPolicy{
	MaxTries:          6,
	MaxElapsed:        10 * time.Second,
	InitialBackoff:    1 * time.Second,
	BackoffMultiplier: 2.0,
}

// NoJitter leaves computed waits unchanged.
func NoJitter(d time.Duration) time.Duration { return d }

// FullJitter draws a wait uniformly from [0, d].
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d == math.MaxInt64 {
		return time.Duration(rand.Int64N(int64(d)))
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

// RetryAll treats every error as retryable except context cancellation and
// configuration errors.
func RetryAll(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var cfgErr *ConfigError
	return !errors.As(err, &cfgErr)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxTries == 0 {
		p.MaxTries = DefaultRetryPolicy.MaxTries
	}
	if p.MaxElapsed == 0 {
		p.MaxElapsed = DefaultRetryPolicy.MaxElapsed
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}
	if p.BackoffMultiplier == 0 {
		p.BackoffMultiplier = DefaultRetryPolicy.BackoffMultiplier
	}
	if p.Jitter == nil {
		p.Jitter = FullJitter
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	return p
}

func (p RetryPolicy) validate() error {
	switch {
	case p.MaxTries < 0:
		return &ConfigError{Field: "max_tries", Reason: "must not be negative"}
	case p.MaxElapsed < 0:
		return &ConfigError{Field: "max_elapsed", Reason: "must not be negative"}
	case p.InitialBackoff < 0 || p.MaxBackoff < 0:
		return &ConfigError{Field: "backoff", Reason: "must not be negative"}
	case p.BackoffMultiplier != 0 && p.BackoffMultiplier < 1:
		return &ConfigError{Field: "backoff_multiplier", Reason: "must be at least 1"}
	}
	return nil
}

// backoff returns the un-jittered wait after the given failed try (1-based).
func (p RetryPolicy) backoff(try int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(try-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// RetryHook is notified before each retry sleep.
type RetryHook func(try int, wait time.Duration, err error)

// Do runs fn until it succeeds or the policy gives up. Zero fields of p take
// the values of DefaultRetryPolicy. A nil clock means the wall clock.
//
// On exhaustion the last error is returned as a *TransportError whose Tries
// field holds the number of attempts. Context errors are returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, clock Clock, onRetry RetryHook, fn func(context.Context) error) error {
	p = p.withDefaults()
	if clock == nil {
		clock = SystemClock{}
	}
	start := clock.Now()
	for try := 1; ; try++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !p.Retryable(err) || try >= p.MaxTries {
			return withTries(err, try)
		}

		remaining := p.MaxElapsed - clock.Now().Sub(start)
		if remaining <= 0 {
			return withTries(err, try)
		}
		wait := min(p.Jitter(min(p.backoff(try), remaining)), remaining)
		if onRetry != nil {
			onRetry(try, wait, err)
		}
		if sleepErr := clock.Sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
	}
}

func withTries(err error, tries int) error {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		cp := *tErr
		cp.Tries = tries
		return &cp
	}
	return &TransportError{Tries: tries, Err: err}
}

// Clock abstracts time so retry and batch delays can be tested without
// sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
