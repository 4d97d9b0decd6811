package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.ID)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, 8, cfg.Agent.MaxRoundTrips)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("should accept defaults", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("should reject unknown models", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Model.ID = "llama-3"
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject models without a backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Model.ID = "gemini-2.5-pro"
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject unknown store backends", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject non-positive loop bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Agent.MaxRoundTrips = 0
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.Agent.MaxRetries = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject negative thinking budgets", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Model.ThinkingBudget = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestConfig_StringMasksCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.AnthropicAPIKey = "sk-ant-secret"
	cfg.Providers.OpenAIAPIKey = "sk-secret"

	out := cfg.String()

	assert.NotContains(t, out, "sk-ant-secret")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "***")
}

func TestLoader_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "oba.json"))

	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.ID)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
	assert.NotEmpty(t, cfg.Usage.File)
}

func TestLoader_ReadsFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.json")
	body := `{
		"model": {"id": "gpt-5-mini", "max_output_tokens": 2048},
		"store": "memory",
		"vault_path": "/notes",
		"agent": {"max_round_trips": 4}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", cfg.Model.ID)
	assert.Equal(t, 2048, cfg.Model.MaxOutputTokens)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "/notes", cfg.VaultPath)
	assert.Equal(t, 4, cfg.Agent.MaxRoundTrips)
	// untouched fields keep their defaults
	assert.Equal(t, 3, cfg.Agent.MaxRetries)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "oba.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Model.ID = "gpt-5"
	cfg.VaultPath = "/vault"
	require.NoError(t, loader.Save(cfg))

	reloaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", reloaded.Model.ID)
	assert.Equal(t, "/vault", reloaded.VaultPath)
}
