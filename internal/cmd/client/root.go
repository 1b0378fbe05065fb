package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the txq client.
// It registers the queue and dlq command groups.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "txq",
		Short: "txq client commands",
	}
	root.AddCommand(NewQueueCommand())
	root.AddCommand(NewDeadLetterCommand())
	return root
}
