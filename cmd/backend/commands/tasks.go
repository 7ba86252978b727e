package commands

import (
	"encoding/json"
	"strconv"

	"github.com/dyluth/backend/internal/printer"
	"github.com/spf13/cobra"
)

var tasksJSON bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks discovered from the installed apps",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(tasksCmd)
}

type taskInfo struct {
	Name       string `json:"name"`
	Queue      string `json:"queue"`
	MaxRetries int    `json:"max_retries"`
	RateLimit  string `json:"rate_limit,omitempty"`
}

func runTasks(cmd *cobra.Command, args []string) error {
	names := app.Registry.Names()

	infos := make([]taskInfo, 0, len(names))
	for _, name := range names {
		t, err := app.Registry.Lookup(name)
		if err != nil {
			return err
		}
		queue := t.Queue
		if queue == "" {
			queue = cfg.DefaultQueue
		}
		infos = append(infos, taskInfo{Name: name, Queue: queue, MaxRetries: t.MaxRetries, RateLimit: t.RateLimit})
	}

	if tasksJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		printer.Warning("No tasks discovered; check installed_apps in %s\n", settingsFile())
		return nil
	}

	for _, info := range infos {
		kv := map[string]string{"queue": info.Queue, "retries": strconv.Itoa(info.MaxRetries)}
		if info.RateLimit != "" {
			kv["rate_limit"] = info.RateLimit
		}
		printer.Step("%s\n", info.Name)
		printer.KeyValues(kv)
	}
	return nil
}
