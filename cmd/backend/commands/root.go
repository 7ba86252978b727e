package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/backend/internal/bootstrap"
	"github.com/dyluth/backend/internal/logging"
	"github.com/dyluth/backend/internal/printer"
	"github.com/dyluth/backend/internal/settings"
	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/spf13/cobra"
)

var (
	settingsPath string
	logLevel     string
	envFiles     []string

	// Populated by the root command's PersistentPreRunE
	app *taskqueue.App
	cfg *settings.Settings
)

// connectApp opens the app's broker and result backend connections.
// Tests replace it to point the app at an in-memory Redis.
var connectApp = func(ctx context.Context, a *taskqueue.App) error {
	return a.Connect(ctx)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backend",
	Short: "Backend task queue - worker, scheduler and client",
	Long: `backend runs and talks to the project's task queue.

Tasks are published to a Redis broker and their outcomes recorded in a Redis
result backend. The tasks available are discovered from the installed apps
listed in the settings module.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (overrides $"+bootstrap.SettingsModuleEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default $"+logging.LevelEnv+" or info)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files loaded before settings; missing files are ignored")
}

func initApp(cmd *cobra.Command, args []string) error {
	printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())

	if err := settings.LoadDotEnv(envFiles...); err != nil {
		return printer.Error("Failed to load env file", err.Error(), nil)
	}

	logger := logging.Setup(cmd.ErrOrStderr(), logLevel)

	if settingsPath != "" {
		os.Setenv(bootstrap.SettingsModuleEnv, settingsPath)
	}

	a, s, err := bootstrap.Init(bootstrap.Options{Logger: logger})
	if err != nil {
		return printer.ErrorWithContext(
			"Failed to initialise task queue",
			err.Error(),
			map[string]string{"Settings": settingsFile()},
			[]string{
				fmt.Sprintf("Set %s to the path of your settings file", bootstrap.SettingsModuleEnv),
				"Pass --settings <path>",
			},
		)
	}

	app, cfg = a, s
	return nil
}

// connect opens Redis connections, reporting failures the CLI way
func connect(ctx context.Context) error {
	if err := connectApp(ctx, app); err != nil {
		return printer.ErrorWithContext(
			"Cannot reach Redis",
			err.Error(),
			map[string]string{
				"Broker":         app.Conf.BrokerURL,
				"Result backend": app.Conf.ResultBackend,
			},
			[]string{"Check that the redis service is running and reachable"},
		)
	}
	return nil
}

// settingsFile returns the settings path in effect
func settingsFile() string {
	return os.Getenv(bootstrap.SettingsModuleEnv)
}
