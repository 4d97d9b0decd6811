package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/oba/pkg/agent"
)

var (
	chatSessionID string
	chatNoStream  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send a message to the agent",
	Long: `Send a message to the agent and print its response.
With --session the conversation continues where that session left off;
without it a new session is started and its id printed at the end.
Output streams as it arrives unless --no-stream is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "session id to continue")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the full response instead of streaming")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := strings.Join(args, " ")

	var resp *agent.Response
	if chatNoStream {
		resp, err = rt.agent.Run(ctx, input, chatSessionID)
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
	} else {
		sink := make(chan agent.Delta, 16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for d := range sink {
				switch {
				case d.Text != "":
					fmt.Print(d.Text)
				case d.ToolCall != nil:
					fmt.Printf("\n[Tool call: %s]\n", d.ToolCall.Name)
				}
			}
		}()
		resp, err = rt.agent.Stream(ctx, input, chatSessionID, sink)
		<-done
		if err != nil {
			return err
		}
		fmt.Println()
	}

	if chatSessionID == "" {
		fmt.Printf("\nsession: %s\n", resp.SessionID)
	}
	fmt.Printf("tokens: %d in / %d out, cost: $%.4f\n",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalCost)
	return nil
}
