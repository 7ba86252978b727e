package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrTaskNotRegistered is returned when a task name has no handler.
	ErrTaskNotRegistered = errors.New("task not registered")

	// ErrAlreadyRegistered is returned when a task name is registered twice.
	ErrAlreadyRegistered = errors.New("task already registered")
)

// Handler executes one task invocation. The returned value is JSON-encoded
// into the task result.
type Handler interface {
	Run(ctx context.Context, args json.RawMessage) (any, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Run calls f(ctx, args).
func (f HandlerFunc) Run(ctx context.Context, args json.RawMessage) (any, error) {
	return f(ctx, args)
}

// Task describes a registered task and its execution options.
type Task struct {
	Name       string
	Handler    Handler
	Queue      string        // Queue SendTask uses when the caller names none; empty = app default
	MaxRetries int           // How many times a failing invocation is re-queued
	RetryDelay time.Duration // Seed of the Fibonacci retry backoff, in whole seconds
	RateLimit  string        // e.g. "10/s"; empty = unlimited

	limiter *rate.Limiter
}

// Limiter returns the task's rate limiter, or nil when unlimited.
func (t *Task) Limiter() *rate.Limiter {
	return t.limiter
}

// Registry maps task names to tasks. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. The task's rate limit is parsed here so a bad
// expression fails at registration rather than at first execution.
func (r *Registry) Register(t Task) error {
	if t.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("task %s: handler cannot be nil", t.Name)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("task %s: max retries must be >= 0", t.Name)
	}

	limiter, err := ParseRateLimit(t.RateLimit)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	t.limiter = limiter

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, t.Name)
	}
	r.tasks[t.Name] = &t

	return nil
}

// Lookup returns the task registered under name.
func (r *Registry) Lookup(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotRegistered, name)
	}
	return t, nil
}

// Names returns all registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
