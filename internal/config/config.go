package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Provider     string             `mapstructure:"provider"`
	Agent        string             `mapstructure:"agent"`
	Compaction   CompactionConfig   `mapstructure:"compaction"`
	Sandbox      SandboxConfig      `mapstructure:"sandbox"`
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Ollama       OllamaConfig       `mapstructure:"ollama"`
	OpenAICompat OpenAICompatConfig `mapstructure:"openai-compat"`
}

// CompactionConfig controls automatic conversation summarization.
type CompactionConfig struct {
	// ContextLimit is the threshold at which compaction triggers. A value
	// in (0,1] is a fraction of the model's context window; a value above 1
	// is an absolute token count. Empty uses the model default.
	ContextLimit string `mapstructure:"context_limit"`
}

// SandboxConfig selects where shell and file tools execute.
type SandboxConfig struct {
	Backend string `mapstructure:"backend"` // "local", "modal", "daytona", or "runloop"
	ID      string `mapstructure:"id"`      // Reconnect to an existing sandbox
	Setup   string `mapstructure:"setup"`   // Setup script run on sandbox creation
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OllamaConfig configures the Ollama provider (OpenAI-compatible)
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"` // Default: http://localhost:11434/v1
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"` // Optional, Ollama ignores it
}

// OpenAICompatConfig configures a generic OpenAI-compatible server
type OpenAICompatConfig struct {
	BaseURL string `mapstructure:"base_url"` // Required - no default
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"` // Optional
	Name    string `mapstructure:"name"`    // Display name, defaults to "OpenAI-compat"
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(DataDir())
	v.AddConfigPath(".")

	v.SetDefault("provider", "anthropic")
	v.SetDefault("agent", "default")
	v.SetDefault("sandbox.backend", "local")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("openai.model", "gpt-5")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("ollama.base_url", "http://localhost:11434/v1")
	// openai-compat has no base_url default - it's required

	// The config file is optional; defaults plus env vars are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Anthropic.APIKey = resolveKey(cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	cfg.OpenAI.APIKey = resolveKey(cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	cfg.Gemini.APIKey = resolveKey(cfg.Gemini.APIKey, "GEMINI_API_KEY")
	cfg.Ollama.APIKey = expandEnv(cfg.Ollama.APIKey)
	cfg.Ollama.BaseURL = expandEnv(cfg.Ollama.BaseURL)
	cfg.OpenAICompat.APIKey = expandEnv(cfg.OpenAICompat.APIKey)
	cfg.OpenAICompat.BaseURL = expandEnv(cfg.OpenAICompat.BaseURL)

	if limit := os.Getenv("SDRBOT_CONTEXT_LIMIT"); limit != "" {
		cfg.Compaction.ContextLimit = limit
	}

	return &cfg, nil
}

// ApplyOverrides applies provider and model overrides to the config.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model != "" {
		switch c.Provider {
		case "anthropic":
			c.Anthropic.Model = model
		case "openai":
			c.OpenAI.Model = model
		case "gemini":
			c.Gemini.Model = model
		case "ollama":
			c.Ollama.Model = model
		case "openai-compat":
			c.OpenAICompat.Model = model
		}
	}
}

// ActiveModel returns the model configured for the active provider.
func (c *Config) ActiveModel() string {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic.Model
	case "openai":
		return c.OpenAI.Model
	case "gemini":
		return c.Gemini.Model
	case "ollama":
		return c.Ollama.Model
	case "openai-compat":
		return c.OpenAICompat.Model
	}
	return ""
}

func resolveKey(configured, envVar string) string {
	key := expandEnv(configured)
	if key == "" {
		key = os.Getenv(envVar)
	}
	return key
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// DataDir returns the workspace-local data directory. Service registrations,
// MCP server definitions, and the model selection all live here so that each
// project keeps its own assistant state.
func DataDir() string {
	return ".sdrbot"
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() (string, error) {
	dir := DataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// AgentsDir returns the directory holding per-agent prompt and memory
// files. Unlike .sdrbot state, agent files live at the workspace root so
// users edit them directly.
func AgentsDir() string {
	return "agents"
}

// SkillsDir returns the directory holding workspace-level skill files.
func SkillsDir() string {
	return "skills"
}
