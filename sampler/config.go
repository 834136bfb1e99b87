package sampler

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Backend selects the Transport implementation built by New.
type Backend string

const (
	// BackendOpenAI talks to any OpenAI-compatible chat completions server
	// (vLLM, llama.cpp server, OpenAI itself).
	BackendOpenAI Backend = "openai"
	// BackendGoogle uses the Gemini API through genai.
	BackendGoogle Backend = "google"
	// BackendLorem generates placeholder text locally without any network.
	BackendLorem Backend = "lorem"
)

// Defaults applied by Config.withDefaults when fields are unset.
const (
	DefaultAPIKey      = "dummy-key"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512

	defaultBatchDelayMin = 1 * time.Second
	defaultBatchDelayMax = 3 * time.Second
)

// Config is the immutable configuration of a Client.
// It is copied by New; mutating the caller's value afterwards has no effect.
type Config struct {
	// ModelID is the model name sent to the server. Required.
	ModelID string
	// BaseURL of the server, e.g. "http://localhost:8000/v1". Required for
	// the openai backend.
	BaseURL string
	// APIKey may be a placeholder for local servers.
	APIKey string

	Backend Backend

	// Sampling parameters. A nil Temperature means DefaultTemperature.
	Temperature *float64
	MaxTokens   int
	Stop        []string

	// Cost per 1000 tokens.
	PromptTokenCost   float64
	ResponseTokenCost float64

	// Cache enables the exact-prompt response cache.
	Cache bool

	// Retry is the per-call retry policy. Zero fields take the defaults of
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// BatchDelayMin and BatchDelayMax bound the randomized pause after a
	// failed batch attempt.
	BatchDelayMin time.Duration
	BatchDelayMax time.Duration

	// HTTP knobs shared by the network backends.
	HTTPClient *http.Client
	Timeout    time.Duration

	// DetectEnv pulls a missing APIKey from SAMPLER_API_KEY or OPENAI_API_KEY.
	DetectEnv bool
}

// EffectiveTemperature returns the sampling temperature after defaults.
func (c Config) EffectiveTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// Validate checks required fields and limits.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendOpenAI, BackendGoogle, BackendLorem:
	default:
		return &ConfigError{Field: "backend", Reason: fmt.Sprintf("unsupported value %q", c.Backend), Err: ErrUnknownBackend}
	}
	if c.ModelID == "" {
		return &ConfigError{Field: "model_id", Reason: "is required"}
	}
	if c.BaseURL == "" && (c.Backend == "" || c.Backend == BackendOpenAI) {
		return &ConfigError{Field: "base_url", Reason: "is required"}
	}
	if c.MaxTokens < 0 {
		return &ConfigError{Field: "max_tokens", Reason: "must not be negative"}
	}
	if c.PromptTokenCost < 0 || c.ResponseTokenCost < 0 {
		return &ConfigError{Field: "token_cost", Reason: "must not be negative"}
	}
	if c.BatchDelayMin < 0 || c.BatchDelayMax < 0 {
		return &ConfigError{Field: "batch_delay", Reason: "must not be negative"}
	}
	if c.BatchDelayMax > 0 && c.BatchDelayMin > c.BatchDelayMax {
		return &ConfigError{Field: "batch_delay", Reason: "min exceeds max"}
	}
	return c.Retry.validate()
}

// withDefaults fills unset fields. It does not touch required fields.
func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendOpenAI
	}
	if c.APIKey == "" && c.DetectEnv {
		if v := os.Getenv("SAMPLER_API_KEY"); v != "" {
			c.APIKey = v
		} else {
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.APIKey == "" {
		c.APIKey = DefaultAPIKey
	}
	t := c.EffectiveTemperature()
	c.Temperature = &t
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.BatchDelayMin == 0 && c.BatchDelayMax == 0 {
		c.BatchDelayMin = defaultBatchDelayMin
		c.BatchDelayMax = defaultBatchDelayMax
	}
	if c.BatchDelayMax < c.BatchDelayMin {
		c.BatchDelayMax = c.BatchDelayMin
	}
	c.Retry = c.Retry.withDefaults()
	if len(c.Stop) > 0 {
		c.Stop = append([]string(nil), c.Stop...)
	}
	return c
}
