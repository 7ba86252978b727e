package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/backend/internal/beat"
	"github.com/dyluth/backend/internal/printer"
	"github.com/dyluth/backend/internal/worker"
	"github.com/spf13/cobra"
)

var (
	workerEmbedBeat bool
	workerNoHealth  bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queues and execute tasks",
	Long: `Start a worker that consumes the configured queues and runs the discovered tasks.

Concurrency, queues and the health port come from the settings file and can
be overridden with BACKEND_WORKER_CONCURRENCY, BACKEND_WORKER_QUEUES and
BACKEND_HEALTH_PORT. Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().BoolVarP(&workerEmbedBeat, "beat", "B", false, "Also run the periodic task scheduler")
	workerCmd.Flags().BoolVar(&workerNoHealth, "no-health", false, "Do not serve /healthz")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := connect(ctx); err != nil {
		return err
	}
	defer app.Close()

	if !workerNoHealth {
		hs := worker.NewHealthServer(app.Broker(), app.Backend(), cfg.Worker.HealthPort, app.Logger)
		if err := hs.Start(); err != nil {
			return printer.Error("Failed to start health server", err.Error(), []string{"Pick another port with BACKEND_HEALTH_PORT", "Pass --no-health"})
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := hs.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error("health server shutdown error", "error", err)
			}
		}()
	}

	if workerEmbedBeat {
		scheduler := beat.New(app, cfg.BeatSchedule, app.Logger)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	return worker.New(app, cfg.Worker).Start(ctx)
}
