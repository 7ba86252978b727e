package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RichardKnop/machinery/v2"
	redisbackend "github.com/RichardKnop/machinery/v2/backends/redis"
	"github.com/RichardKnop/machinery/v2/tasks"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueue is the queue tasks go to when neither the caller nor the task names one.
const DefaultQueue = "celery"

// Config holds the connection strings and defaults of an App.
// Fields are assigned directly by startup code before Connect.
type Config struct {
	BrokerURL     string        // e.g. redis://redis:6379/0
	ResultBackend string        // e.g. redis://redis:6379/1
	DefaultQueue  string        // empty = DefaultQueue
	ResultExpires time.Duration // zero = DefaultResultExpires
}

// App is a named task-queue application handle.
type App struct {
	Name     string
	Conf     Config
	Registry *Registry
	Logger   *slog.Logger

	brokerOpts *redis.Options
	server     *machinery.Server // producer side
	broker     *Broker
	backend    *ResultBackend

	discoverOnce sync.Once
	discoverErr  error
	closeOnce    sync.Once
}

// NewApp creates an application handle with an empty registry.
// No connections are opened until Connect.
func NewApp(name string) *App {
	return &App{
		Name:     name,
		Registry: NewRegistry(),
		Logger:   slog.Default(),
	}
}

// Connect parses both connection strings, pings each Redis database and
// builds the machinery server tasks are sent through.
func (a *App) Connect(ctx context.Context) error {
	if a.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	brokerOpts, err := redis.ParseURL(a.Conf.BrokerURL)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	backendOpts, err := redis.ParseURL(a.Conf.ResultBackend)
	if err != nil {
		return fmt.Errorf("invalid result backend URL: %w", err)
	}

	broker, err := NewBroker(brokerOpts, a.Name)
	if err != nil {
		return fmt.Errorf("failed to create broker client: %w", err)
	}

	cnf := a.machineryConfig(DefaultPollTimeout)
	backend := newResultBackend(backendOpts, redisbackend.NewGR(cnf, machineryAddr(backendOpts), backendOpts.DB))

	if err := broker.Ping(ctx); err != nil {
		broker.Close()
		backend.Close()
		return fmt.Errorf("broker not accessible: %w", err)
	}

	if err := backend.Ping(ctx); err != nil {
		broker.Close()
		backend.Close()
		return fmt.Errorf("result backend not accessible: %w", err)
	}

	a.brokerOpts = brokerOpts
	a.broker = broker
	a.backend = backend
	a.server = a.newServer(cnf)

	if err := a.server.RegisterTasks(a.taskFuncs()); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	a.Logger.Debug("connected", "app", a.Name, "broker", brokerOpts.Addr, "broker_db", brokerOpts.DB, "backend", backendOpts.Addr, "backend_db", backendOpts.DB)

	return nil
}

// Broker returns the broker client, or nil before Connect.
func (a *App) Broker() *Broker {
	return a.broker
}

// Backend returns the result backend client, or nil before Connect.
func (a *App) Backend() *ResultBackend {
	return a.backend
}

// NewWorker creates a machinery worker consuming one queue with the given
// concurrency. Each worker owns its broker connection, which it closes when
// it quits. Tasks registered so far are registered with the worker.
func (a *App) NewWorker(queue string, concurrency int, pollTimeout time.Duration) (*machinery.Worker, error) {
	if a.backend == nil {
		return nil, fmt.Errorf("app %s is not connected", a.Name)
	}

	server := a.newServer(a.machineryConfig(pollTimeout))
	if err := server.RegisterTasks(a.taskFuncs()); err != nil {
		return nil, fmt.Errorf("failed to register tasks: %w", err)
	}

	tag := fmt.Sprintf("%s@%s", a.Name, queue)
	return server.NewCustomQueueWorker(tag, concurrency, QueueKey(a.Name, queue)), nil
}

// Close closes every connection. Safe to call before Connect and more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.server != nil {
			// Stopping a broker that never consumed only releases its client
			a.server.GetBroker().StopConsuming()
		}
		if a.broker != nil {
			errs = append(errs, a.broker.Close())
		}
		if a.backend != nil {
			errs = append(errs, a.backend.Close())
		}
	})
	return errors.Join(errs...)
}

func (a *App) defaultQueue() string {
	if a.Conf.DefaultQueue != "" {
		return a.Conf.DefaultQueue
	}
	return DefaultQueue
}

type sendOptions struct {
	queue     string
	countdown time.Duration
	eta       time.Time
}

// SendOption customises a single SendTask call.
type SendOption func(*sendOptions)

// WithQueue routes the task to the named queue.
func WithQueue(queue string) SendOption {
	return func(o *sendOptions) { o.queue = queue }
}

// WithCountdown delays execution by d.
func WithCountdown(d time.Duration) SendOption {
	return func(o *sendOptions) { o.countdown = d }
}

// WithETA delays execution until t. It takes precedence over WithCountdown.
func WithETA(t time.Time) SendOption {
	return func(o *sendOptions) { o.eta = t }
}

// SendTask publishes a task and returns a handle to its result. The task's
// state is PENDING from this point on.
//
// The task need not be registered locally: the worker consuming the queue
// may be the only process that knows it. When it is registered, its queue
// and retry policy travel with the message.
func (a *App) SendTask(ctx context.Context, name string, args any, opts ...SendOption) (*AsyncResult, error) {
	if a.server == nil {
		return nil, fmt.Errorf("app %s is not connected", a.Name)
	}
	if name == "" {
		return nil, fmt.Errorf("task name is required")
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	task, _ := a.Registry.Lookup(name)
	if o.queue == "" {
		if task != nil && task.Queue != "" {
			o.queue = task.Queue
		} else {
			o.queue = a.defaultQueue()
		}
	}

	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task args: %w", err)
	}

	sig := &tasks.Signature{
		UUID:       uuid.New().String(),
		Name:       name,
		RoutingKey: QueueKey(a.Name, o.queue),
		Args:       signatureArgs(rawArgs),
	}
	if task != nil {
		sig.RetryCount = task.MaxRetries
		sig.RetryTimeout = int(task.RetryDelay / time.Second)
	}

	switch {
	case !o.eta.IsZero():
		eta := o.eta.UTC()
		sig.ETA = &eta
	case o.countdown > 0:
		eta := time.Now().UTC().Add(o.countdown)
		sig.ETA = &eta
	}

	if _, err := a.server.SendTaskWithContext(ctx, sig); err != nil {
		return nil, fmt.Errorf("failed to send task %s: %w", name, err)
	}

	a.Logger.Debug("task sent", "task", name, "id", sig.UUID, "queue", o.queue)
	return &AsyncResult{ID: sig.UUID, app: a}, nil
}

// AsyncResult is a handle to the eventual result of a sent task.
type AsyncResult struct {
	ID  string
	app *App
}

// NewAsyncResult returns a handle to an already-sent task's result.
func (a *App) NewAsyncResult(taskID string) *AsyncResult {
	return &AsyncResult{ID: taskID, app: a}
}

// State returns the task's current state. A task with no stored result is PENDING.
func (r *AsyncResult) State(ctx context.Context) (TaskState, error) {
	res, err := r.fetch(ctx)
	if err != nil {
		return "", err
	}
	return res.State, nil
}

// Ready reports whether the task has finished.
func (r *AsyncResult) Ready(ctx context.Context) (bool, error) {
	state, err := r.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Ready(), nil
}

// Info returns the stored result, or a PENDING placeholder when nothing is stored.
func (r *AsyncResult) Info(ctx context.Context) (*TaskResult, error) {
	return r.fetch(ctx)
}

// Get waits for the task to finish and returns its result.
// Use a context deadline to bound the wait.
func (r *AsyncResult) Get(ctx context.Context) (*TaskResult, error) {
	if r.app.backend == nil {
		return nil, fmt.Errorf("app %s is not connected", r.app.Name)
	}
	return r.app.backend.WaitForResult(ctx, r.ID)
}

func (r *AsyncResult) fetch(ctx context.Context) (*TaskResult, error) {
	if r.app.backend == nil {
		return nil, fmt.Errorf("app %s is not connected", r.app.Name)
	}

	res, err := r.app.backend.GetResult(ctx, r.ID)
	if IsNotFound(err) {
		return &TaskResult{TaskID: r.ID, State: StatePending}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
