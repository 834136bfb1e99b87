package sampler

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// Client requests completions from one configured model. It owns the usage
// counters and, when enabled, the response cache. A Client is safe for
// concurrent use, although concurrent requests for the same uncached prompt
// may each reach the server.
type Client struct {
	cfg       Config
	transport Transport
	usage     *usageState
	cache     *ResponseCache

	log     zerolog.Logger
	metrics *Metrics
	clock   Clock
	// randFunc returns a float64 in [0,1) used for the inter-batch delay.
	randFunc func() float64
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithTransport replaces the backend built from Config.Backend.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger installs a structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics reports calls, tokens, cost and cache lookups to m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the time source used for retry and batch delays.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithRand overrides the random source of the inter-batch delay.
func WithRand(fn func() float64) Option {
	return func(c *Client) { c.randFunc = fn }
}

// New validates cfg and creates a Client. Configuration problems are
// reported here as *ConfigError and never at call time.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:      cfg,
		usage:    newUsageState(cfg.PromptTokenCost, cfg.ResponseTokenCost),
		log:      zerolog.Nop(),
		clock:    SystemClock{},
		randFunc: rand.Float64,
	}
	if cfg.Cache {
		c.cache = NewResponseCache()
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("backend", string(cfg.Backend)).Str("model", cfg.ModelID).Logger()

	if c.transport == nil {
		t, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		c.transport = t
	}
	return c, nil
}

// Config returns a copy of the effective configuration, defaults applied.
func (c *Client) Config() Config {
	cfg := c.cfg
	t := cfg.EffectiveTemperature()
	cfg.Temperature = &t
	cfg.Stop = slices.Clone(cfg.Stop)
	return cfg
}

// RequestCompletions asks for count completions of prompt.
//
// With count == 1 a single transport call is made; if it still fails after
// the retry policy gives up, the *TransportError is returned.
//
// With count > 1 choices are requested in batches that shrink after every
// failed attempt, within a budget of count failed attempts. Running out of
// budget is not an error: the result then holds fewer choices than requested
// (see Result.Degraded) and callers needing an exact count must check
// Result.Len. If ctx is cancelled the partial result is returned along with
// the context error.
//
// With caching enabled, a prompt seen before returns the stored result
// without contacting the server, even if that result was degraded.
func (c *Client) RequestCompletions(ctx context.Context, prompt string, count int) (*Result, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	if c.cache != nil {
		if res, ok := c.cache.Get(prompt); ok {
			c.metrics.cacheLookup(true)
			c.log.Debug().Int("choices", res.Len()).Msg("response cache hit")
			return res, nil
		}
		c.metrics.cacheLookup(false)
	}

	var res *Result
	if count == 1 {
		resp, err := c.chat(ctx, prompt, 1)
		if err != nil {
			return nil, err
		}
		res = &Result{Prompt: prompt, Requested: 1, Responses: []*Response{resp}}
	} else {
		var err error
		res, err = c.requestBatched(ctx, prompt, count)
		if err != nil {
			return res, err
		}
	}

	c.metrics.returned(res.Len())
	if c.cache != nil {
		c.cache.Set(prompt, res)
	}
	return res, nil
}

// ExtractTexts returns one generated text per choice of result.
func (c *Client) ExtractTexts(result *Result) []string {
	return ExtractTexts(result)
}

// PromptTokens returns the prompt tokens reported so far.
func (c *Client) PromptTokens() int { return c.usage.snapshot().PromptTokens }

// CompletionTokens returns the completion tokens reported so far.
func (c *Client) CompletionTokens() int { return c.usage.snapshot().CompletionTokens }

// Cost returns the estimated cost of all reported usage.
func (c *Client) Cost() float64 { return c.usage.snapshot().Cost }

// Usage returns a consistent snapshot of all usage counters.
func (c *Client) Usage() UsageSnapshot { return c.usage.snapshot() }

// CacheStats returns the response cache counters; zero when caching is off.
func (c *Client) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

// chat performs one logical transport call for n choices, retried according
// to the retry policy, and records usage on success.
func (c *Client) chat(ctx context.Context, prompt string, n int) (*Response, error) {
	messages := []Message{{Role: RoleUser, Content: prompt}}
	backend := c.cfg.Backend

	onRetry := func(try int, wait time.Duration, err error) {
		c.log.Debug().Err(err).Int("try", try).Int("n", n).Dur("wait", wait).Msg("transport call failed, backing off")
	}

	var resp *Response
	err := c.cfg.Retry.Do(ctx, c.clock, onRetry, func(ctx context.Context) error {
		r, err := c.transport.Chat(ctx, messages, n)
		if err == nil && r == nil {
			err = &TransportError{Backend: backend, Err: ErrNoChoices}
		}
		if err != nil {
			c.metrics.transportCall(backend, "error")
			return err
		}
		c.metrics.transportCall(backend, "ok")
		resp = r
		return nil
	})
	if err != nil {
		var tErr *TransportError
		if errors.As(err, &tErr) && tErr.Backend == "" {
			tErr.Backend = backend
		}
		return nil, err
	}

	snap, costDelta := c.usage.record(resp.Usage)
	c.metrics.usage(c.cfg.ModelID, resp.Usage, costDelta)
	c.log.Info().
		Int("n", n).
		Int("choices", len(resp.Choices)).
		Int("prompt_tokens", snap.PromptTokens).
		Int("completion_tokens", snap.CompletionTokens).
		Float64("cost", snap.Cost).
		Msg("response received")
	return resp, nil
}
