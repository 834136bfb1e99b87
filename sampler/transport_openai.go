package sampler

import (
	"context"
	"errors"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAITransport talks to an OpenAI-compatible /chat/completions endpoint.
type openAITransport struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	stop        []string
}

func newOpenAITransport(cfg Config) *openAITransport {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = httpClientFor(cfg)
	return &openAITransport{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.ModelID,
		temperature: wireTemperature(cfg.EffectiveTemperature()),
		maxTokens:   cfg.MaxTokens,
		stop:        cfg.Stop,
	}
}

func (p *openAITransport) Chat(ctx context.Context, messages []Message, n int) (*Response, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		N:           n,
		Stop:        p.stop,
	})
	if err != nil {
		return nil, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &TransportError{Backend: BackendOpenAI, Err: ErrNoChoices}
	}
	return toResponse(resp), nil
}

// wireTemperature maps 0 to the smallest positive float32. go-openai omits a
// zero temperature from the request and the server would apply its default.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toResponse(resp openai.ChatCompletionResponse) *Response {
	out := &Response{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]Choice, 0, len(resp.Choices)),
	}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        c.Index,
			Text:         c.Message.Content,
			FinishReason: string(c.FinishReason),
		})
	}
	// go-openai decodes a missing usage object as zeros.
	if resp.Usage.PromptTokens != 0 || resp.Usage.CompletionTokens != 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	return out
}

// openAIError attaches the HTTP status of API and request errors.
func openAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return &TransportError{Backend: BackendOpenAI, Status: status, Err: err}
}
