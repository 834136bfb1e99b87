package sampler

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// googleTransport uses the Gemini API. Multiple choices map to candidates.
type googleTransport struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	stop        []string
}

func newGoogleTransport(cfg Config) (*googleTransport, error) {
	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClientFor(cfg),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, &ConfigError{Field: "backend", Reason: "cannot create google client", Err: err}
	}
	return &googleTransport{
		client:      gc,
		model:       cfg.ModelID,
		temperature: float32(cfg.EffectiveTemperature()),
		maxTokens:   int32(cfg.MaxTokens),
		stop:        cfg.Stop,
	}, nil
}

func (p *googleTransport) Chat(ctx context.Context, messages []Message, n int) (*Response, error) {
	gcfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
		StopSequences:   p.stop,
		CandidateCount:  int32(n),
	}

	contents := make([]*genai.Content, 0, len(messages))
	var system []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		gcfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n")}},
		}
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, contents, gcfg)
	if err != nil {
		return nil, googleError(err)
	}
	out := toResponseFromGenAI(res)
	if len(out.Choices) == 0 {
		return nil, &TransportError{Backend: BackendGoogle, Err: ErrNoChoices}
	}
	if out.Model == "" {
		out.Model = p.model
	}
	return out, nil
}

func toResponseFromGenAI(res *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if res == nil {
		return out
	}
	out.ID = res.ResponseID
	out.Model = res.ModelVersion
	for i, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var text string
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			// Multiple text parts are concatenated with a newline.
			if text == "" {
				text = part.Text
			} else {
				text += "\n" + part.Text
			}
		}
		out.Choices = append(out.Choices, Choice{
			Index:        i,
			Text:         text,
			FinishReason: string(cand.FinishReason),
		})
	}
	if um := res.UsageMetadata; um != nil && (um.PromptTokenCount > 0 || um.CandidatesTokenCount > 0) {
		out.Usage = &Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
		}
	}
	return out
}

func googleError(err error) error {
	status := 0
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Code
	}
	return &TransportError{Backend: BackendGoogle, Status: status, Err: err}
}
