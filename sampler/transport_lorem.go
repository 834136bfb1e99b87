package sampler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	loremgen "github.com/bozaro/golorem"
)

// LoremOptions configures the offline lorem-ipsum transport.
type LoremOptions struct {
	Model     string
	MaxTokens int

	// MaxBatch makes the transport reject any request for more than MaxBatch
	// choices with a 503, imitating a server under load. 0 disables it.
	MaxBatch int
}

// LoremTransport generates placeholder completions locally. It needs no
// server or API key and is used for dry runs and tests.
type LoremTransport struct {
	mu        sync.Mutex
	generator *loremgen.Lorem
	opts      LoremOptions
	calls     int
}

// NewLoremTransport creates a lorem-ipsum transport.
func NewLoremTransport(opts LoremOptions) *LoremTransport {
	if opts.Model == "" {
		opts.Model = "lorem"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &LoremTransport{generator: loremgen.New(), opts: opts}
}

func newLoremTransport(cfg Config) *LoremTransport {
	return NewLoremTransport(LoremOptions{Model: cfg.ModelID, MaxTokens: cfg.MaxTokens})
}

// Chat returns n lorem-ipsum choices with word-count usage estimates.
func (p *LoremTransport) Chat(ctx context.Context, messages []Message, n int) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.opts.MaxBatch > 0 && n > p.opts.MaxBatch {
		return nil, &TransportError{
			Backend: BackendLorem,
			Status:  http.StatusServiceUnavailable,
			Err:     fmt.Errorf("batch of %d exceeds capacity %d", n, p.opts.MaxBatch),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	maxWords := min(p.opts.MaxTokens, 15)
	resp := &Response{
		ID:      fmt.Sprintf("lorem-%d", p.calls),
		Model:   p.opts.Model,
		Choices: make([]Choice, 0, n),
		Usage:   &Usage{PromptTokens: estimateTokens(messages)},
	}
	for i := range n {
		text := p.generator.Sentence(min(5, maxWords), maxWords)
		resp.Choices = append(resp.Choices, Choice{Index: i, Text: text, FinishReason: "stop"})
		resp.Usage.CompletionTokens += len(strings.Fields(text))
	}
	return resp, nil
}

// estimateTokens approximates prompt tokens by word count.
func estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total
}
