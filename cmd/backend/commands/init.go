package commands

import (
	"github.com/dyluth/backend/internal/bootstrap"
	"github.com/dyluth/backend/internal/printer"
	"github.com/dyluth/backend/internal/scaffold"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter settings module",
	Long: `Write a starter settings file listing the installed apps, worker options and
a sample periodic task. The default path is ` + bootstrap.DefaultSettingsModule + `.`,
	Args: cobra.MaximumNArgs(1),
	// Runs before any settings exist, so skip the root initialisation
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
		return nil
	},
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing settings file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := bootstrap.DefaultSettingsModule
	if len(args) == 1 {
		path = args[0]
	}

	if err := scaffold.Initialize(path, initForce); err != nil {
		return printer.Error("Failed to initialise settings", err.Error(), []string{"Re-run with --force to overwrite"})
	}

	printer.Success("Wrote %s\n", path)
	printer.Info("Point %s at it, or keep the default path, then run: backend worker\n", bootstrap.SettingsModuleEnv)
	return nil
}
