package commands

import (
	"github.com/dyluth/backend/internal/printer"
	"github.com/spf13/cobra"
)

var (
	purgeQueues []string
	purgeYes    bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Discard all waiting messages",
	Long: `Discard every message waiting on the given queues (default: the worker's queues).
Tasks already taken by a worker are not affected. Requires --yes.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().StringSliceVarP(&purgeQueues, "queue", "Q", nil, "Queues to purge (repeatable)")
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "Confirm the purge")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	queues := purgeQueues
	if len(queues) == 0 {
		queues = cfg.Worker.Queues
	}

	if !purgeYes {
		return printer.Error("Purge not confirmed", "Purging deletes waiting tasks permanently.", []string{"Re-run with --yes"})
	}

	ctx := cmd.Context()
	if err := connect(ctx); err != nil {
		return err
	}
	defer app.Close()

	for _, q := range queues {
		n, err := app.Broker().Purge(ctx, q)
		if err != nil {
			return err
		}
		printer.Success("Purged %d message(s) from %s\n", n, q)
	}
	return nil
}
