package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/oba/internal/config"
)

func TestConfigureCmd_WritesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.json")
	cfgFile = path
	configureModelID = "gpt-5"
	configureVaultPath = "/notes"
	configureStore = "memory"
	t.Cleanup(func() {
		cfgFile = ""
		configureModelID = ""
		configureVaultPath = ""
		configureStore = ""
	})

	var out bytes.Buffer
	configureCmd.SetOut(&out)
	require.NoError(t, runConfigure(configureCmd, nil))
	assert.Contains(t, out.String(), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", cfg.Model.ID)
	assert.Equal(t, "/notes", cfg.VaultPath)
	assert.Equal(t, "memory", cfg.Store)
}

func TestConfigureCmd_KeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.json")
	seed := config.DefaultConfig()
	seed.VaultPath = "/kept"
	require.NoError(t, config.NewLoader(path).Save(seed))

	cfgFile = path
	configureModelID = "gpt-5"
	t.Cleanup(func() {
		cfgFile = ""
		configureModelID = ""
	})

	require.NoError(t, runConfigure(configureCmd, nil))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", cfg.Model.ID)
	assert.Equal(t, "/kept", cfg.VaultPath)
}

func TestConfigureCmd_RejectsInvalidSettings(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "oba.json")
	configureModelID = "no-such-model"
	t.Cleanup(func() {
		cfgFile = ""
		configureModelID = ""
	})

	err := runConfigure(configureCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
