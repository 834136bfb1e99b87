package sampler

import (
	"context"
	"os"
	"testing"
	"time"
)

// realWorldClient connects to the server named by SAMPLER_BASE_URL and
// SAMPLER_MODEL_ID, e.g. a local vLLM instance.
func realWorldClient(t *testing.T, cache bool) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping real-world test in short mode")
	}
	baseURL, model := os.Getenv("SAMPLER_BASE_URL"), os.Getenv("SAMPLER_MODEL_ID")
	if baseURL == "" || model == "" {
		t.Skip("SAMPLER_BASE_URL and SAMPLER_MODEL_ID not set")
	}

	c, err := New(Config{
		ModelID:           model,
		BaseURL:           baseURL,
		DetectEnv:         true,
		MaxTokens:         64,
		PromptTokenCost:   0.0015,
		ResponseTokenCost: 0.002,
		Cache:             cache,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

// TestRealWorld_SingleCompletion checks the basic round trip
func TestRealWorld_SingleCompletion(t *testing.T) {
	client := realWorldClient(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := client.RequestCompletions(ctx, "Say hello in exactly 5 words.", 1)
	if err != nil {
		t.Fatalf("RequestCompletions failed: %v", err)
	}
	texts := client.ExtractTexts(res)
	if len(texts) != 1 || texts[0] == "" {
		t.Fatalf("Expected one non-empty text, got %q", texts)
	}

	t.Logf("✓ Response received: %q", texts[0])
	t.Logf("✓ Prompt tokens: %d", client.PromptTokens())
	t.Logf("✓ Completion tokens: %d", client.CompletionTokens())
	t.Logf("✓ Cost: %.6f", client.Cost())
}

// TestRealWorld_MultipleCompletions asks for several samples at once
func TestRealWorld_MultipleCompletions(t *testing.T) {
	client := realWorldClient(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const prompt = "Sort the list [5, 3, 1, 4, 2]. Reply with the sorted list only."
	res, err := client.RequestCompletions(ctx, prompt, 4)
	if err != nil {
		t.Fatalf("RequestCompletions failed: %v", err)
	}
	if res.Degraded() {
		t.Logf("! Degraded result: %d of %d after %d failed attempts", res.Len(), res.Requested, res.FailedAttempts)
	}
	for i, text := range client.ExtractTexts(res) {
		t.Logf("✓ Sample %d: %q", i+1, text)
	}

	calls := client.Usage().Calls
	again, err := client.RequestCompletions(ctx, prompt, 4)
	if err != nil {
		t.Fatalf("cached RequestCompletions failed: %v", err)
	}
	if again != res {
		t.Fatal("Expected the cached result")
	}
	if client.Usage().Calls != calls {
		t.Fatal("Expected no transport calls for a cached prompt")
	}
}
