package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/oba/pkg/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known model ids and which backend serves them",
	Run: func(cmd *cobra.Command, args []string) {
		for _, id := range model.KnownModels() {
			provider := model.Provider(id)
			if provider == "" {
				provider = "(rate table only)"
			}
			fmt.Printf("%-22s %s\n", id, provider)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
