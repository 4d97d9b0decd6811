package config

import (
	"encoding/json"
	"fmt"

	"github.com/harun/oba/pkg/model"
)

// Config represents the main oba configuration
type Config struct {
	// Model selection
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Agent loop behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Provider credentials
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Vault path (Obsidian-style notes directory)
	VaultPath string `json:"vault_path" mapstructure:"vault_path"`

	// Data directory (session store, usage rollup)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Session store backend: sqlite or memory
	Store string `json:"store" mapstructure:"store"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Usage rollup
	Usage UsageConfig `json:"usage" mapstructure:"usage"`
}

// ModelConfig selects the backend model and its effort settings
type ModelConfig struct {
	ID              string `json:"id" mapstructure:"id"`
	MaxOutputTokens int    `json:"max_output_tokens" mapstructure:"max_output_tokens"`
	EffortLevel     string `json:"effort_level" mapstructure:"effort_level"`
	ThinkingBudget  int    `json:"thinking_budget" mapstructure:"thinking_budget"`
}

// AgentConfig tunes the run loop
type AgentConfig struct {
	SystemPrompt      string `json:"system_prompt" mapstructure:"system_prompt"`
	MaxRoundTrips     int    `json:"max_round_trips" mapstructure:"max_round_trips"`
	MaxRetries        int    `json:"max_retries" mapstructure:"max_retries"`
	RequestTimeoutSec int    `json:"request_timeout_sec" mapstructure:"request_timeout_sec"`
}

// ProvidersConfig holds API credentials. Keys are opaque to the rest of the
// program; they are handed to the backend constructor and never logged.
type ProvidersConfig struct {
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// UsageConfig controls the accounting rollup
type UsageConfig struct {
	File          string `json:"file" mapstructure:"file"`
	FlushSchedule string `json:"flush_schedule" mapstructure:"flush_schedule"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			ID:              "claude-sonnet-4-5",
			MaxOutputTokens: 4096,
		},
		Agent: AgentConfig{
			MaxRoundTrips:     8,
			MaxRetries:        3,
			RequestTimeoutSec: 60,
		},
		Store: "sqlite",
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Usage: UsageConfig{
			FlushSchedule: "@every 5m",
		},
	}
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	masked := *c
	if masked.Providers.AnthropicAPIKey != "" {
		masked.Providers.AnthropicAPIKey = "***"
	}
	if masked.Providers.OpenAIAPIKey != "" {
		masked.Providers.OpenAIAPIKey = "***"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Model.ID == "" {
		return fmt.Errorf("model id is required")
	}
	if !model.KnownModel(c.Model.ID) {
		return fmt.Errorf("unknown model %s (known: %v)", c.Model.ID, model.KnownModels())
	}
	if model.Provider(c.Model.ID) == "" {
		return fmt.Errorf("no backend serves model %s", c.Model.ID)
	}
	if c.Store != "sqlite" && c.Store != "memory" {
		return fmt.Errorf("invalid store %s (must be: sqlite, memory)", c.Store)
	}
	if c.Agent.MaxRoundTrips < 1 {
		return fmt.Errorf("max_round_trips must be at least 1")
	}
	if c.Agent.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.Model.ThinkingBudget < 0 {
		return fmt.Errorf("thinking_budget must not be negative")
	}
	return nil
}
