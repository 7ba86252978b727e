// Package beat sends periodic tasks on cron schedules.
package beat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dyluth/backend/internal/settings"
	"github.com/dyluth/backend/pkg/taskqueue"
)

// Sender publishes a task. *taskqueue.App satisfies it.
type Sender interface {
	SendTask(ctx context.Context, name string, args any, opts ...taskqueue.SendOption) (*taskqueue.AsyncResult, error)
}

// Scheduler turns beat_schedule entries into cron jobs
type Scheduler struct {
	sender   Sender
	schedule map[string]settings.BeatEntry
	cron     *cron.Cron
	logger   *slog.Logger
	running  bool
	mu       sync.Mutex
}

// New creates a scheduler for the given entries
func New(sender Sender, schedule map[string]settings.BeatEntry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sender:   sender,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "beat"),
	}
}

// Start registers every entry and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	// Sorted so registration order (and log output) is stable
	names := make([]string, 0, len(s.schedule))
	for name := range s.schedule {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.register(ctx, name, s.schedule[name]); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("beat started", "entries", len(names))
	return nil
}

// Stop stops the cron loop and waits for running sends to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info("beat stopped")
}

func (s *Scheduler) register(ctx context.Context, name string, entry settings.BeatEntry) error {
	_, err := s.cron.AddFunc(entry.Schedule, func() {
		s.fire(ctx, name, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to add beat entry %s: %w", name, err)
	}

	s.logger.Debug("registered beat entry", "entry", name, "task", entry.Task, "schedule", entry.Schedule)
	return nil
}

func (s *Scheduler) fire(ctx context.Context, name string, entry settings.BeatEntry) {
	var opts []taskqueue.SendOption
	if entry.Queue != "" {
		opts = append(opts, taskqueue.WithQueue(entry.Queue))
	}

	res, err := s.sender.SendTask(ctx, entry.Task, entry.Args, opts...)
	if err != nil {
		s.logger.Error("failed to send periodic task", "entry", name, "task", entry.Task, "error", err)
		return
	}

	s.logger.Info("sent periodic task", "entry", name, "task", entry.Task, "id", res.ID)
}
