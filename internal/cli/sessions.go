package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored conversation sessions",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(false)
	if err != nil {
		return err
	}
	defer rt.close()

	summaries, err := rt.store.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(summaries) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("%s  %4d messages  %s\n", s.ID, s.Messages, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
