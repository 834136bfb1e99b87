package sampler

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message sent to a Transport.
type Message struct {
	Role    Role
	Content string
}

// Choice is one generated completion within a Response.
type Choice struct {
	Index        int
	Text         string
	FinishReason string
}

// Usage is the token usage reported by the server for a single call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the provider-agnostic result of one transport call.
type Response struct {
	ID      string
	Model   string
	Choices []Choice

	// Usage is nil when the server did not report token usage.
	Usage *Usage
}

// Texts returns the generated text of every choice, in order.
func (r *Response) Texts() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Choices))
	for _, c := range r.Choices {
		out = append(out, c.Text)
	}
	return out
}

// Result is what RequestCompletions returns.
//
// A single-completion request yields exactly one Response. A multi-completion
// request yields one Response per successful batch, in the order the batches
// succeeded. The total number of choices may be lower than Requested when the
// attempt budget ran out; see Degraded.
//
// Results may be shared through the response cache and must be treated as
// read-only.
type Result struct {
	Prompt    string
	Requested int
	Responses []*Response

	// FailedAttempts counts batch attempts whose transport call failed after
	// the inner retry policy gave up.
	FailedAttempts int
}

// Len returns the total number of choices across all responses.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, resp := range r.Responses {
		if resp != nil {
			n += len(resp.Choices)
		}
	}
	return n
}

// Degraded reports whether fewer choices than requested were obtained.
func (r *Result) Degraded() bool {
	return r != nil && r.Len() < r.Requested
}

// Texts flattens the result into one string per choice.
func (r *Result) Texts() []string {
	if r == nil {
		return nil
	}
	return ResponseTexts(r.Responses...)
}

// ResponseTexts flattens one or more responses into one string per choice,
// preserving response order and choice order within each response.
func ResponseTexts(responses ...*Response) []string {
	total := 0
	for _, resp := range responses {
		if resp != nil {
			total += len(resp.Choices)
		}
	}
	out := make([]string, 0, total)
	for _, resp := range responses {
		out = append(out, resp.Texts()...)
	}
	return out
}

// ExtractTexts returns the generated texts of a result, one per choice.
func ExtractTexts(result *Result) []string {
	return result.Texts()
}
