package sampler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock advances on Sleep instead of blocking.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// stubTransport answers with n choices and fixed usage unless fail says
// otherwise for the requested batch size.
type stubTransport struct {
	mu    sync.Mutex
	fail  func(n int) error
	usage *Usage
	calls []int // n of every call, in order
	ok    int
}

func (s *stubTransport) Chat(ctx context.Context, messages []Message, n int) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, n)
	if s.fail != nil {
		if err := s.fail(n); err != nil {
			return nil, err
		}
	}
	s.ok++
	resp := &Response{ID: fmt.Sprintf("stub-%d", len(s.calls)), Model: "stub"}
	for i := range n {
		resp.Choices = append(resp.Choices, Choice{
			Index:        i,
			Text:         fmt.Sprintf("%s #%d.%d", messages[len(messages)-1].Content, s.ok, i),
			FinishReason: "stop",
		})
	}
	if s.usage != nil {
		u := *s.usage
		resp.Usage = &u
	}
	return resp, nil
}

func (s *stubTransport) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

func (s *stubTransport) Successes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ok
}

// failAbove rejects batches larger than limit with a non-retryable status so
// that each rejection is exactly one transport call.
func failAbove(limit int) func(int) error {
	return func(n int) error {
		if n > limit {
			return &TransportError{Status: http.StatusBadRequest, Err: fmt.Errorf("batch %d too large", n)}
		}
		return nil
	}
}

func testConfig() Config {
	return Config{
		ModelID:           "test-model",
		BaseURL:           "http://localhost:8000/v1",
		PromptTokenCost:   0.5,
		ResponseTokenCost: 1.5,
		Retry:             RetryPolicy{Jitter: NoJitter},
	}
}

func newTestClient(t *testing.T, cfg Config, tr Transport, opts ...Option) (*Client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	all := append([]Option{
		WithTransport(tr),
		WithClock(clock),
		WithRand(func() float64 { return 0.5 }),
	}, opts...)
	c, err := New(cfg, all...)
	require.NoError(t, err)
	return c, clock
}

func choiceCounts(res *Result) []int {
	out := make([]int, 0, len(res.Responses))
	for _, r := range res.Responses {
		out = append(out, len(r.Choices))
	}
	return out
}
