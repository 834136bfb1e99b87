package sampler

import "context"

// LanguageModel is the capability a reasoning controller consumes. Every
// backend is reached through the same *Client, so callers pick a backend by
// configuration rather than by type.
type LanguageModel interface {
	RequestCompletions(ctx context.Context, prompt string, count int) (*Result, error)
	ExtractTexts(result *Result) []string
	PromptTokens() int
	CompletionTokens() int
	Cost() float64
}

var _ LanguageModel = (*Client)(nil)
