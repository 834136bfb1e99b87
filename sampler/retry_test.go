package sampler

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	clock := newFakeClock()
	p := RetryPolicy{Jitter: NoJitter}
	var hooked []int

	tries := 0
	err := p.Do(context.Background(), clock, func(try int, wait time.Duration, err error) {
		hooked = append(hooked, try)
	}, func(context.Context) error {
		tries++
		if tries < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, tries)
	assert.Equal(t, []int{1, 2}, hooked)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestRetryPolicy_MaxTries(t *testing.T) {
	clock := newFakeClock()
	p := RetryPolicy{MaxTries: 3, MaxElapsed: time.Hour, Jitter: NoJitter}

	tries := 0
	err := p.Do(context.Background(), clock, nil, func(context.Context) error {
		tries++
		return errors.New("down")
	})
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 3, tErr.Tries)
	assert.Equal(t, 3, tries)
	assert.Len(t, clock.Sleeps(), 2)
}

func TestRetryPolicy_MaxBackoff(t *testing.T) {
	clock := newFakeClock()
	p := RetryPolicy{MaxTries: 5, MaxElapsed: time.Hour, MaxBackoff: 3 * time.Second, Jitter: NoJitter}

	_ = p.Do(context.Background(), clock, nil, func(context.Context) error {
		return errors.New("down")
	})
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, clock.Sleeps())
}

func TestRetryPolicy_NonRetryableStopsImmediately(t *testing.T) {
	clock := newFakeClock()
	tries := 0
	err := DefaultRetryPolicy.Do(context.Background(), clock, nil, func(context.Context) error {
		tries++
		return &TransportError{Backend: BackendOpenAI, Status: http.StatusUnauthorized, Err: errors.New("invalid api key")}
	})
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 1, tries)
	assert.Equal(t, 1, tErr.Tries)
	assert.Equal(t, http.StatusUnauthorized, tErr.Status)
	assert.Empty(t, clock.Sleeps())
}

func TestRetryPolicy_DoesNotMutateCallerError(t *testing.T) {
	orig := &TransportError{Status: http.StatusBadRequest, Err: errors.New("bad")}
	err := DefaultRetryPolicy.Do(context.Background(), newFakeClock(), nil, func(context.Context) error {
		return orig
	})
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 1, tErr.Tries)
	assert.Zero(t, orig.Tries)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tries := 0
	err := DefaultRetryPolicy.Do(ctx, newFakeClock(), nil, func(context.Context) error {
		tries++
		cancel()
		return errors.New("interrupted")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tries)

	var tErr *TransportError
	assert.False(t, errors.As(err, &tErr), "context errors are returned unwrapped")
}

func TestRetryPolicy_FullJitterBounds(t *testing.T) {
	for range 100 {
		d := FullJitter(time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	assert.Zero(t, FullJitter(0))
	assert.Zero(t, FullJitter(-time.Second))
}

func TestSystemClock_SleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := SystemClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, SystemClock{}.Sleep(context.Background(), time.Millisecond))
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("eof"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net error", &net.OpError{Op: "dial", Err: timeoutErr{}}, true},
		{"config", &ConfigError{Field: "model_id", Reason: "is required"}, false},
		{"400", &TransportError{Status: 400}, false},
		{"401", &TransportError{Status: 401}, false},
		{"404", &TransportError{Status: 404}, false},
		{"408", &TransportError{Status: 408}, true},
		{"409", &TransportError{Status: 409}, true},
		{"429", &TransportError{Status: 429}, true},
		{"500", &TransportError{Status: 500}, true},
		{"503", &TransportError{Status: 503}, true},
		{"no status", &TransportError{Err: ErrNoChoices}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransportError_Message(t *testing.T) {
	err := &TransportError{Backend: BackendOpenAI, Status: 503, Tries: 6, Err: errors.New("overloaded")}
	assert.Equal(t, "sampler: openai transport (status 503) failed after 6 tries: overloaded", err.Error())

	err = &TransportError{Backend: BackendLorem, Tries: 1}
	assert.Equal(t, "sampler: lorem transport failed", err.Error())
}

func TestRetryPolicy_HugeBackoffDoesNotPanic(t *testing.T) {
	clock := newFakeClock()
	p := RetryPolicy{MaxTries: 100, MaxElapsed: 1 << 62, InitialBackoff: time.Second}

	var err error
	require.NotPanics(t, func() {
		err = p.Do(context.Background(), clock, nil, func(context.Context) error {
			return errors.New("down")
		})
	})
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)

	var total time.Duration
	for _, d := range clock.Sleeps() {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		total += d
	}
	assert.LessOrEqual(t, total, time.Duration(1<<62))
}

func TestRetryPolicy_WaitCappedBeforeJitter(t *testing.T) {
	var seen []time.Duration
	p := RetryPolicy{
		MaxTries:       3,
		MaxElapsed:     5 * time.Second,
		InitialBackoff: time.Hour,
		Jitter: func(d time.Duration) time.Duration {
			seen = append(seen, d)
			return d
		},
	}
	clock := newFakeClock()
	_ = p.Do(context.Background(), clock, nil, func(context.Context) error {
		return errors.New("down")
	})
	assert.Equal(t, []time.Duration{5 * time.Second}, seen)
	assert.Equal(t, []time.Duration{5 * time.Second}, clock.Sleeps())
}

func TestFullJitter_MaxDuration(t *testing.T) {
	assert.NotPanics(t, func() {
		d := FullJitter(time.Duration(math.MaxInt64))
		assert.GreaterOrEqual(t, d, time.Duration(0))
	})
}

func TestRetryPolicy_RetryAll(t *testing.T) {
	clock := newFakeClock()
	p := RetryPolicy{MaxElapsed: time.Hour, Jitter: NoJitter, Retryable: RetryAll}

	tries := 0
	err := p.Do(context.Background(), clock, nil, func(context.Context) error {
		tries++
		return &TransportError{Status: http.StatusUnauthorized, Err: errors.New("invalid api key")}
	})
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 6, tries)
	assert.Equal(t, 6, tErr.Tries)

	assert.False(t, RetryAll(nil))
	assert.False(t, RetryAll(context.Canceled))
	assert.False(t, RetryAll(&ConfigError{Field: "model_id"}))
	assert.True(t, RetryAll(&TransportError{Status: http.StatusBadRequest}))
}
