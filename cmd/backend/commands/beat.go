package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/backend/internal/beat"
	"github.com/dyluth/backend/internal/printer"
	"github.com/spf13/cobra"
)

var beatCmd = &cobra.Command{
	Use:   "beat",
	Short: "Send periodic tasks on their schedules",
	Long: `Run the periodic task scheduler. Each beat_schedule entry in the settings
file is sent to the broker whenever its cron schedule fires.

Run exactly one beat process per deployment, or periodic tasks are sent twice.`,
	Args: cobra.NoArgs,
	RunE: runBeat,
}

func init() {
	rootCmd.AddCommand(beatCmd)
}

func runBeat(cmd *cobra.Command, args []string) error {
	if len(cfg.BeatSchedule) == 0 {
		printer.Warning("No beat_schedule entries in settings; nothing to schedule\n")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := connect(ctx); err != nil {
		return err
	}
	defer app.Close()

	scheduler := beat.New(app, cfg.BeatSchedule, app.Logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	scheduler.Stop()
	return nil
}
