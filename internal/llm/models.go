package llm

import "strings"

// ModelProfile describes the limits of a known model.
type ModelProfile struct {
	MaxInputTokens int
}

// modelProfiles maps model-name prefixes to profiles. Matched longest-prefix
// first so more specific entries win.
var modelProfiles = map[string]ModelProfile{
	"claude-opus-4":     {MaxInputTokens: 200_000},
	"claude-sonnet-4":   {MaxInputTokens: 200_000},
	"claude-haiku-4":    {MaxInputTokens: 200_000},
	"claude-3-5":        {MaxInputTokens: 200_000},
	"gpt-5":             {MaxInputTokens: 272_000},
	"gpt-4.1":           {MaxInputTokens: 1_047_576},
	"gpt-4o":            {MaxInputTokens: 128_000},
	"o3":                {MaxInputTokens: 200_000},
	"o4-mini":           {MaxInputTokens: 200_000},
	"gemini-2.5-pro":    {MaxInputTokens: 1_048_576},
	"gemini-2.5-flash":  {MaxInputTokens: 1_048_576},
	"gemini-2.0-flash":  {MaxInputTokens: 1_048_576},
}

// ProfileForModel returns the profile for a model, or ok=false when the
// model is unknown (custom endpoints, fine-tunes).
func ProfileForModel(model string) (ModelProfile, bool) {
	model = strings.ToLower(model)
	best := ""
	for prefix := range modelProfiles {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return ModelProfile{}, false
	}
	return modelProfiles[best], true
}

// MaxInputTokensForModel returns the model's input limit, or 0 if unknown.
func MaxInputTokensForModel(model string) int {
	if profile, ok := ProfileForModel(model); ok {
		return profile.MaxInputTokens
	}
	return 0
}
