package sampler

import "sync"

// UsageSnapshot is a point-in-time copy of a Client's usage counters.
type UsageSnapshot struct {
	PromptTokens     int
	CompletionTokens int
	Cost             float64

	// Calls counts successful transport calls, including those that
	// reported no usage.
	Calls int
}

// TotalTokens returns prompt plus completion tokens.
func (u UsageSnapshot) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// usageState accumulates token usage and the derived cost for one Client.
type usageState struct {
	mu sync.Mutex

	promptCost   float64 // per 1000 prompt tokens
	responseCost float64 // per 1000 completion tokens

	promptTokens     int
	completionTokens int
	cost             float64
	calls            int
}

func newUsageState(promptCost, responseCost float64) *usageState {
	return &usageState{promptCost: promptCost, responseCost: responseCost}
}

// record adds the usage of one successful call and returns the new totals
// with the cost increase. A nil usage only counts the call. The cost is
// recomputed from the running totals, never incremented.
func (u *usageState) record(usage *Usage) (UsageSnapshot, float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.calls++
	before := u.cost
	if usage != nil {
		u.promptTokens += max(usage.PromptTokens, 0)
		u.completionTokens += max(usage.CompletionTokens, 0)
		u.cost = u.promptCost*float64(u.promptTokens)/1000.0 +
			u.responseCost*float64(u.completionTokens)/1000.0
	}
	return u.snapshotLocked(), u.cost - before
}

func (u *usageState) snapshot() UsageSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshotLocked()
}

func (u *usageState) snapshotLocked() UsageSnapshot {
	return UsageSnapshot{
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		Cost:             u.cost,
		Calls:            u.calls,
	}
}
