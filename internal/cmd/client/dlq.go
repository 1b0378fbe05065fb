package client

import (
	"fmt"

	"github.com/spf13/cobra"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
)

// NewDeadLetterCommand returns the `dlq` command group.
func NewDeadLetterCommand() *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered entries",
	}
	dlqCmd.AddCommand(newDeadLetterListCommand(), newDeadLetterReplayCommand())
	return dlqCmd
}

func newDeadLetterListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the oldest dead-lettered entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			resp, err := newTransport().ListDeadLetters(cmd.Context(), txqv1.ListDeadLettersRequest{Limit: limit})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	listCmd.Flags().Int("limit", 100, "Maximum entries to show")
	return listCmd
}

func newDeadLetterReplayCommand() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Requeue dead-lettered entries with a fresh attempt budget",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, _ := cmd.Flags().GetStringArray("id")
			all, _ := cmd.Flags().GetBool("all")
			target, _ := cmd.Flags().GetString("target")
			switch {
			case all && len(ids) > 0:
				return fmt.Errorf("use either --id or --all")
			case !all && len(ids) == 0:
				return fmt.Errorf("--id or --all is required")
			}
			resp, err := newTransport().ReplayDeadLetters(cmd.Context(), txqv1.ReplayDeadLettersRequest{IDs: ids, Target: target})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	replayCmd.Flags().StringArray("id", []string{}, "Entry id to replay (repeat)")
	replayCmd.Flags().Bool("all", false, "Replay the whole dead-letter lane")
	replayCmd.Flags().String("target", "standard", "Lane to replay into: immediate|high|standard")
	return replayCmd
}
