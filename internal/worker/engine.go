// Package worker consumes the configured queues and runs the registered
// task handlers through machinery workers.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RichardKnop/machinery/v2"
	"github.com/RichardKnop/machinery/v2/tasks"
	"github.com/dyluth/backend/internal/settings"
	"github.com/dyluth/backend/pkg/taskqueue"
)

// Engine runs one machinery worker per configured queue against a connected app.
//
// Each worker runs up to Concurrency tasks at a time. Tasks with a future ETA
// wait in the broker's delayed set rather than in a worker, and failed tasks
// are scheduled again there, so neither holds a worker slot. A message is
// acknowledged by the act of popping it: a worker killed mid-task loses that
// task.
type Engine struct {
	app    *taskqueue.App
	cfg    *settings.WorkerSettings
	logger *slog.Logger
}

// New creates an engine. The app must already be connected.
func New(app *taskqueue.App, cfg *settings.WorkerSettings) *Engine {
	return &Engine{
		app:    app,
		cfg:    cfg,
		logger: app.Logger.With("component", "worker"),
	}
}

// Start launches the workers and blocks until ctx is cancelled and every
// worker has finished its running tasks.
func (e *Engine) Start(ctx context.Context) error {
	if e.app.Broker() == nil || e.app.Backend() == nil {
		return fmt.Errorf("app %s is not connected", e.app.Name)
	}
	if len(e.cfg.Queues) == 0 {
		return fmt.Errorf("at least one queue is required")
	}

	e.logger.Info("worker starting",
		"app", e.app.Name,
		"concurrency", e.cfg.Concurrency,
		"queues", e.cfg.Queues,
		"tasks", e.app.Registry.Names())

	workers := make([]*machinery.Worker, 0, len(e.cfg.Queues))
	stopped := make(chan error, len(e.cfg.Queues))

	for _, queue := range e.cfg.Queues {
		w, err := e.app.NewWorker(queue, e.cfg.Concurrency, e.cfg.PollTimeout)
		if err != nil {
			e.quit(workers, stopped)
			return fmt.Errorf("failed to create worker for queue %s: %w", queue, err)
		}
		e.hook(w, queue)
		w.LaunchAsync(stopped)
		workers = append(workers, w)
	}

	<-ctx.Done()
	e.logger.Info("shutdown signal received, waiting for running tasks")

	e.quit(workers, stopped)
	e.logger.Info("all workers exited, shutdown complete")

	return nil
}

// hook attaches logging to a worker's task lifecycle.
func (e *Engine) hook(w *machinery.Worker, queue string) {
	logger := e.logger.With("queue", queue)

	w.SetPreTaskHandler(func(sig *tasks.Signature) {
		logger.Debug("task started", "task", sig.Name, "id", sig.UUID, "retries_left", sig.RetryCount)
	})
	w.SetPostTaskHandler(func(sig *tasks.Signature) {
		logger.Debug("task finished", "task", sig.Name, "id", sig.UUID)
	})
	// Called for broker errors and for failed tasks
	w.SetErrorHandler(func(err error) {
		logger.Warn("worker error", "error", err)
	})
}

// quit stops every worker, which waits for its running tasks, then collects
// the exit of each worker's consume loop.
func (e *Engine) quit(workers []*machinery.Worker, stopped <-chan error) {
	for _, w := range workers {
		w.Quit()
	}
	for range workers {
		if err := <-stopped; err != nil {
			e.logger.Warn("worker stopped with error", "error", err)
		}
	}
}
