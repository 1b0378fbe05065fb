package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
)

// NewQueueCommand returns the `queue` command group.
func NewQueueCommand() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Priority lane operations",
		Long: `Priority lane operations.

Lanes:
  immediate   attempted inline on enqueue, stored durably in high
  high        short SLA, drained first
  standard    default lane
  retry       failed entries waiting for their backoff to elapse

Commands:
  enqueue   Submit a transaction payload
  process   Drain one batch from a lane now
  status    Lane lengths, SLA metrics and the circuit breaker`,
	}
	queueCmd.AddCommand(
		newQueueEnqueueCommand(),
		newQueueProcessCommand(),
		newQueueStatusCommand(),
	)
	return queueCmd
}

func newQueueEnqueueCommand() *cobra.Command {
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a transaction payload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, _ := cmd.Flags().GetString("data")
			file, _ := cmd.Flags().GetString("file")
			priority, _ := cmd.Flags().GetString("priority")
			sla, _ := cmd.Flags().GetFloat64("sla")

			switch {
			case data != "" && file != "":
				return fmt.Errorf("use either --data or --file")
			case file != "":
				b, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read --file: %w", err)
				}
				data = string(b)
			case data == "":
				return fmt.Errorf("--data or --file is required")
			}
			if !json.Valid([]byte(data)) {
				return fmt.Errorf("payload is not valid JSON")
			}

			resp, err := newTransport().Enqueue(cmd.Context(), txqv1.EnqueueRequest{
				Payload:   json.RawMessage(data),
				Priority:  priority,
				SLATarget: sla,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	enqueueCmd.Flags().String("data", "", "Transaction payload as a JSON object")
	enqueueCmd.Flags().String("file", "", "Read the payload from a file")
	enqueueCmd.Flags().StringP("priority", "p", "standard", "Priority: immediate|high|standard")
	enqueueCmd.Flags().Float64("sla", 0, "SLA target in seconds (0 uses the lane default)")
	return enqueueCmd
}

func newQueueProcessCommand() *cobra.Command {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Drain one batch from a lane",
		RunE: func(cmd *cobra.Command, _ []string) error {
			laneName, _ := cmd.Flags().GetString("lane")
			size, _ := cmd.Flags().GetInt("batch-size")
			if size < 0 {
				return fmt.Errorf("--batch-size must not be negative")
			}
			resp, err := newTransport().ProcessBatch(cmd.Context(), txqv1.ProcessBatchRequest{Lane: laneName, BatchSize: size})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	processCmd.Flags().StringP("lane", "l", "standard", "Lane: immediate|high|standard|retry")
	processCmd.Flags().Int("batch-size", 0, "Entries to pop (0 uses the lane default)")
	return processCmd
}

func newQueueStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show lane lengths, SLA metrics and the circuit breaker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newTransport().Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}
