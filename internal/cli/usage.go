package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harun/oba/pkg/message"
)

var usageSessionID string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token and cost accounting",
	Long: `Show the lifetime usage rollup, or with --session the accounting
recorded for one stored session.`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVarP(&usageSessionID, "session", "s", "", "session id to inspect")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	if usageSessionID != "" {
		u, err := rt.store.Usage(cmd.Context(), usageSessionID)
		if err != nil {
			return err
		}
		printUsage(usageSessionID, u)
		return nil
	}

	snap := rt.tracker.Snapshot()
	printUsage("lifetime", snap.Lifetime)
	for _, id := range sortedKeys(snap.Sessions) {
		fmt.Println()
		printUsage(id, snap.Sessions[id])
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printUsage(label string, u message.Usage) {
	fmt.Printf("%s:\n", label)
	fmt.Printf("  input tokens:     %d (%d cached)\n", u.InputTokens, u.InputTokensCached)
	fmt.Printf("  output tokens:    %d (%d reasoning)\n", u.OutputTokens, u.OutputTokensReasoning)
	fmt.Printf("  total cost:       $%.4f\n", u.TotalCost)
	if u.ToolCosts > 0 {
		fmt.Printf("  tool costs:       $%.4f\n", u.ToolCosts)
	}
	for _, name := range sortedKeys(u.PerTool) {
		fmt.Printf("    %s: $%.4f\n", name, u.PerTool[name])
	}
}
