package commands

import (
	"context"
	"errors"
	"time"

	"github.com/dyluth/backend/internal/printer"
	"github.com/dyluth/backend/internal/resolver"
	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/spf13/cobra"
)

var (
	resultWait    bool
	resultTimeout time.Duration
	resultForget  bool
)

var resultCmd = &cobra.Command{
	Use:   "result <task-id>",
	Short: "Show the state and result of a task",
	Long: `Show the state and result of a task.

The id may be shortened to a unique prefix of at least 6 characters, as long
as the task already has a stored result.`,
	Args: cobra.ExactArgs(1),
	RunE: runResult,
}

func init() {
	resultCmd.Flags().BoolVarP(&resultWait, "wait", "w", false, "Wait until the task finishes")
	resultCmd.Flags().DurationVar(&resultTimeout, "timeout", 30*time.Second, "How long --wait waits")
	resultCmd.Flags().BoolVar(&resultForget, "forget", false, "Delete the stored result after printing it")
	rootCmd.AddCommand(resultCmd)
}

func runResult(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := connect(ctx); err != nil {
		return err
	}
	defer app.Close()

	taskID, err := resolver.ResolveTaskID(ctx, app.Backend(), args[0])
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		if errors.As(err, &ambiguous) {
			return printer.ErrorWithContext("Ambiguous task id", err.Error(), nil, ambiguous.Suggestions())
		}
		return printer.Error("Invalid task id", err.Error(), []string{"Use the id printed by 'backend send', or a unique prefix of at least 6 characters"})
	}

	handle := app.NewAsyncResult(taskID)

	var result *taskqueue.TaskResult
	if resultWait {
		waitCtx, cancel := context.WithTimeout(ctx, resultTimeout)
		defer cancel()
		result, err = handle.Get(waitCtx)
	} else {
		result, err = handle.Info(ctx)
	}
	if err != nil {
		return printer.ErrorWithContext("Failed to read result", err.Error(), map[string]string{"Task ID": taskID}, nil)
	}

	printResult(result)

	if resultForget {
		if err := app.Backend().Forget(ctx, taskID); err != nil {
			return err
		}
		printer.Success("Forgot result of %s\n", taskID)
	}
	return nil
}

// printResult prints a task result as aligned key/value lines
func printResult(r *taskqueue.TaskResult) {
	kv := map[string]string{
		"id":    r.TaskID,
		"state": string(r.State),
	}
	if r.Task != "" {
		kv["task"] = r.Task
	}
	if len(r.Result) > 0 {
		kv["result"] = string(r.Result)
	}
	if r.Error != "" {
		kv["error"] = r.Error
	}
	printer.KeyValues(kv)
}
