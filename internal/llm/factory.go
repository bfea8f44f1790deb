package llm

import (
	"fmt"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/config"
)

// ParseProviderModel parses "provider:model" or just "provider" from a flag
// or /model argument. Model will be empty if not specified.
func ParseProviderModel(s string) (string, string, error) {
	parts := strings.SplitN(s, ":", 2)
	provider := strings.TrimSpace(parts[0])
	if provider == "" {
		return "", "", fmt.Errorf("invalid provider format: %q", s)
	}
	model := ""
	if len(parts) == 2 {
		model = strings.TrimSpace(parts[1])
	}

	switch provider {
	case "anthropic", "openai", "gemini", "ollama", "openai-compat":
		return provider, model, nil
	}
	return "", "", fmt.Errorf("unknown provider: %s (valid: anthropic, openai, gemini, ollama, openai-compat)", provider)
}

// NewProvider creates an LLM provider for the active provider in the config.
// Providers are wrapped with automatic retry for rate limits (429) and
// transient errors.
func NewProvider(cfg *config.Config) (Provider, error) {
	provider, err := newProviderInternal(cfg)
	if err != nil {
		return nil, err
	}
	return WrapWithRetry(provider, DefaultRetryConfig()), nil
}

func newProviderInternal(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model)

	case "openai":
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	case "gemini":
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model)

	case "ollama":
		return NewOpenAICompatProvider(cfg.Ollama.BaseURL, cfg.Ollama.APIKey, cfg.Ollama.Model, "Ollama"), nil

	case "openai-compat":
		if cfg.OpenAICompat.BaseURL == "" {
			return nil, fmt.Errorf("provider %q requires base_url", cfg.Provider)
		}
		name := cfg.OpenAICompat.Name
		if name == "" {
			name = "OpenAI-compat"
		}
		return NewOpenAICompatProvider(cfg.OpenAICompat.BaseURL, cfg.OpenAICompat.APIKey, cfg.OpenAICompat.Model, name), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
