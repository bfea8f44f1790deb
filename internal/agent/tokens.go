package agent

import (
	"strconv"
	"sync"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// fallbackThreshold is used when the active model has no known input limit.
// It corresponds to 0.85 of a 200k-token window.
const fallbackThreshold = 170_000

// TokenTracker accumulates token usage across a session. CurrentContext is
// overwritten each turn with the live context size; TotalSessionTokens only
// grows until /clear or compaction resets it.
type TokenTracker struct {
	mu sync.Mutex

	current    int
	total      int
	lastOutput int
}

func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Record updates the tracker with a completed turn's token counts.
func (t *TokenTracker) Record(input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = input + output
	t.total += input + output
	t.lastOutput = output
}

// Reset zeroes all counters. Called on /clear and after compaction.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = 0
	t.total = 0
	t.lastOutput = 0
}

func (t *TokenTracker) CurrentContext() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *TokenTracker) TotalSessionTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *TokenTracker) LastOutput() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastOutput
}

// TurnUsage collects token counts within a single turn. Providers may resend
// cumulative totals in each chunk, so per-turn values are maxima across
// chunks rather than sums.
type TurnUsage struct {
	Input  int
	Output int
}

func (u *TurnUsage) Observe(input, output int) {
	if input > u.Input {
		u.Input = input
	}
	if output > u.Output {
		u.Output = output
	}
}

// CompactionThreshold derives the token count at which context compaction
// triggers. The setting comes from config (context_limit, overridable via
// the SDRBOT_CONTEXT_LIMIT environment variable):
//   - empty or unparsable: 0.85 of the model's input limit, or 170,000 when
//     the model is unknown
//   - a fraction in (0, 1]: that fraction of the model's input limit; when
//     the model is unknown, the fraction is scaled so that 0.85 reproduces
//     the 170,000 default exactly
//   - a number above 1: an absolute token threshold
func CompactionThreshold(setting, model string) int {
	maxInput := llm.MaxInputTokensForModel(model)

	defaultThreshold := func() int {
		if maxInput > 0 {
			return int(0.85 * float64(maxInput))
		}
		return fallbackThreshold
	}

	if setting == "" {
		return defaultThreshold()
	}
	f, err := strconv.ParseFloat(setting, 64)
	if err != nil || f <= 0 {
		return defaultThreshold()
	}
	if f <= 1 {
		if maxInput > 0 {
			return int(f * float64(maxInput))
		}
		return int(f * (fallbackThreshold / 0.85))
	}
	return int(f)
}
