package cli

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
	debug   bool
}

// NewRootCmd builds the uangku command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "uangku",
		Short: "Personal income and expense ledger with undo/redo",
		Long: `uangku keeps a per-user ledger of incomes and expenses.

Every change goes to the local store first and is mirrored to an optional
remote (Google Sheets directly, or through a RabbitMQ queue drained by the
worker). Each user gets a bounded undo/redo history and live balance and
budget tracking.

Example:
  uangku serve --port 8081
  uangku worker --debug`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file read for variables that are not set")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newWorkerCmd(opts))
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
