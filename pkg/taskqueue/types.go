package taskqueue

import (
	"encoding/json"
	"fmt"

	"github.com/RichardKnop/machinery/v2/tasks"
)

// TaskState is the lifecycle state of a task as seen through the result backend.
type TaskState string

const (
	// StatePending is stored when a task is sent, and reported for any
	// task the backend knows nothing about.
	StatePending TaskState = tasks.StatePending

	// StateReceived means a worker took the message off the queue.
	StateReceived TaskState = tasks.StateReceived

	// StateStarted means the handler is running.
	StateStarted TaskState = tasks.StateStarted

	// StateSuccess means the handler returned without error.
	StateSuccess TaskState = tasks.StateSuccess

	// StateFailure means the handler failed and no retries remain.
	StateFailure TaskState = tasks.StateFailure

	// StateRetry means the handler failed and the task was scheduled again.
	StateRetry TaskState = tasks.StateRetry
)

// Validate checks that the state is one of the known states.
func (s TaskState) Validate() error {
	switch s {
	case StatePending, StateReceived, StateStarted, StateSuccess, StateFailure, StateRetry:
		return nil
	default:
		return fmt.Errorf("invalid task state: %s", s)
	}
}

// Ready reports whether the state is final.
func (s TaskState) Ready() bool {
	return s == StateSuccess || s == StateFailure
}

// TaskResult is what the result backend records about a task.
type TaskResult struct {
	TaskID string          `json:"task_id"`
	Task   string          `json:"task"`
	State  TaskState       `json:"state"`
	Result json.RawMessage `json:"result,omitempty"` // Handler return value, set on SUCCESS
	Error  string          `json:"error,omitempty"`  // Failure reason, set on FAILURE and RETRY
}
