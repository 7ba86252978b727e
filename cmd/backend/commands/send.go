package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/backend/internal/printer"
	"github.com/dyluth/backend/internal/timespec"
	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/spf13/cobra"
)

var (
	sendArgs    string
	sendQueue   string
	sendETA     string
	sendWait    bool
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <task>",
	Short: "Send a task to the broker",
	Long: `Publish a task message and print its id.

Arguments are given as a JSON document, e.g.:
  backend send core.add --args '[1, 2, 3]' --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendArgs, "args", "", "Task arguments as JSON")
	sendCmd.Flags().StringVarP(&sendQueue, "queue", "Q", "", "Queue to publish to (default: the task's queue)")
	sendCmd.Flags().StringVar(&sendETA, "eta", "", "Run no earlier than this: a duration from now (30s, 1h) or an RFC3339 time")
	sendCmd.Flags().BoolVarP(&sendWait, "wait", "w", false, "Wait for the task's result")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "How long --wait waits")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	taskName := args[0]

	var taskArgs any
	if sendArgs != "" {
		if !json.Valid([]byte(sendArgs)) {
			return printer.Error("Invalid --args", fmt.Sprintf("%q is not valid JSON", sendArgs), []string{`Quote the value, e.g. --args '[1, 2]'`})
		}
		taskArgs = json.RawMessage(sendArgs)
	}

	if _, err := app.Registry.Lookup(taskName); err != nil {
		printer.Warning("Task %s is not registered in this process; sending anyway\n", taskName)
	}

	ctx := cmd.Context()
	if err := connect(ctx); err != nil {
		return err
	}
	defer app.Close()

	var opts []taskqueue.SendOption
	if sendQueue != "" {
		opts = append(opts, taskqueue.WithQueue(sendQueue))
	}
	if sendETA != "" {
		eta, err := timespec.ParseETA(sendETA, time.Now())
		if err != nil {
			return printer.Error("Invalid --eta", err.Error(), nil)
		}
		opts = append(opts, taskqueue.WithETA(eta))
	}

	res, err := app.SendTask(ctx, taskName, taskArgs, opts...)
	if err != nil {
		return fmt.Errorf("failed to send task: %w", err)
	}

	printer.Success("Sent %s\n", taskName)
	printer.Info("%s\n", res.ID)

	if !sendWait {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	result, err := res.Get(waitCtx)
	if err != nil {
		return printer.ErrorWithContext("No result yet", err.Error(), map[string]string{"Task ID": res.ID}, []string{"Check later with: backend result " + res.ID})
	}

	printResult(result)
	if result.State == taskqueue.StateFailure {
		return fmt.Errorf("task %s failed", res.ID)
	}
	return nil
}
