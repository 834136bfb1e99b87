package sampler

import (
	"context"
	"fmt"
	"net/http"
)

// Transport is the chat-completion capability a Client depends on.
//
// Chat sends messages and asks the server for n independent choices. It
// returns a response carrying the choices and, when the server reports it,
// token usage. Any network, protocol or server failure (including rate
// limiting and capacity errors) is returned as an error; wrapping it in a
// *TransportError with the HTTP status lets the retry policy classify it.
type Transport interface {
	Chat(ctx context.Context, messages []Message, n int) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, messages []Message, n int) (*Response, error)

func (f TransportFunc) Chat(ctx context.Context, messages []Message, n int) (*Response, error) {
	return f(ctx, messages, n)
}

// newTransport builds the backend selected by cfg. cfg must already have
// defaults applied.
func newTransport(cfg Config) (Transport, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return newOpenAITransport(cfg), nil
	case BackendGoogle:
		return newGoogleTransport(cfg)
	case BackendLorem:
		return newLoremTransport(cfg), nil
	default:
		return nil, &ConfigError{Field: "backend", Reason: fmt.Sprintf("unsupported value %q", cfg.Backend), Err: ErrUnknownBackend}
	}
}

// httpClientFor returns the configured client, or a new one honoring Timeout.
func httpClientFor(cfg Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return &http.Client{Timeout: cfg.Timeout}
}
