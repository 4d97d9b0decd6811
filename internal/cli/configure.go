package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/oba/internal/config"
)

var (
	configureModelID      string
	configureVaultPath    string
	configureStore        string
	configureAnthropicKey string
	configureOpenAIKey    string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the configuration file",
	Long: `Update the configuration file with the given settings and write it to
disk. Existing values are kept unless overridden by a flag.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureModelID, "model", "", "model id to use")
	configureCmd.Flags().StringVar(&configureVaultPath, "vault", "", "path to the notes vault")
	configureCmd.Flags().StringVar(&configureStore, "store", "", "session store backend (sqlite or memory)")
	configureCmd.Flags().StringVar(&configureAnthropicKey, "anthropic-key", "", "Anthropic API key")
	configureCmd.Flags().StringVar(&configureOpenAIKey, "openai-key", "", "OpenAI API key")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if configureModelID != "" {
		cfg.Model.ID = configureModelID
	}
	if configureVaultPath != "" {
		cfg.VaultPath = configureVaultPath
	}
	if configureStore != "" {
		cfg.Store = configureStore
	}
	if configureAnthropicKey != "" {
		cfg.Providers.AnthropicAPIKey = configureAnthropicKey
	}
	if configureOpenAIKey != "" {
		cfg.Providers.OpenAIAPIKey = configureOpenAIKey
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", loader.GetConfigPath())
	return nil
}
