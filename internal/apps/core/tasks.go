// Package core holds general-purpose tasks. Importing it makes them
// discoverable under the "core" app label.
package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/backend/pkg/taskqueue"
)

// Label is the installed-app name these tasks are discovered under.
const Label = "core"

func init() {
	taskqueue.RegisterApp(Label, Register)
}

// Register adds the core tasks to r.
func Register(r *taskqueue.Registry) error {
	tasks := []taskqueue.Task{
		{Name: "core.ping", Handler: taskqueue.HandlerFunc(Ping)},
		{Name: "core.add", Handler: taskqueue.HandlerFunc(Add)},
		{Name: "core.echo", Handler: taskqueue.HandlerFunc(Echo)},
	}

	for _, t := range tasks {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Ping answers "pong". Used to check that a worker is consuming.
func Ping(ctx context.Context, args json.RawMessage) (any, error) {
	return "pong", nil
}

// Add sums a JSON array of numbers.
func Add(ctx context.Context, args json.RawMessage) (any, error) {
	var nums []float64
	if err := json.Unmarshal(args, &nums); err != nil {
		return nil, fmt.Errorf("core.add expects a JSON array of numbers: %w", err)
	}

	var sum float64
	for _, n := range nums {
		sum += n
	}
	return sum, nil
}

// Echo returns its arguments unchanged.
func Echo(ctx context.Context, args json.RawMessage) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
