package taskqueue

import "fmt"

// Redis key pattern helpers
//
// Broker keys are namespaced by application name so several applications
// can share one broker database. Result keys are the bare task id, the
// layout the result backend writes.

// QueueKey returns the Redis list backing a task queue. It is the routing
// key task signatures carry.
// Pattern: {app}:queue:{queue}
func QueueKey(appName, queue string) string {
	return fmt.Sprintf("%s:queue:%s", appName, queue)
}

// DelayedTasksKey returns the sorted set holding tasks whose ETA is in the
// future, scored by ETA.
// Pattern: {app}:delayed-tasks
func DelayedTasksKey(appName string) string {
	return fmt.Sprintf("%s:delayed-tasks", appName)
}

// ResultKey returns the Redis string holding a task's state and result.
// Pattern: {task_id}
func ResultKey(taskID string) string {
	return taskID
}
