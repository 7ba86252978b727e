package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dyluth/backend/internal/settings"
	"github.com/dyluth/backend/internal/testutil"
	"github.com/dyluth/backend/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEngine creates a connected app with a few tasks registered and
// a worker config for the given concurrency
func setupTestEngine(t *testing.T, concurrency int) (*Engine, *taskqueue.App) {
	mr := testutil.StartRedis(t)
	app := testutil.NewConnectedApp(t, mr, "test-app")

	require.NoError(t, app.Registry.Register(taskqueue.Task{
		Name: "test.add",
		Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
			var nums []int
			if err := json.Unmarshal(args, &nums); err != nil {
				return nil, err
			}
			sum := 0
			for _, n := range nums {
				sum += n
			}
			return sum, nil
		}),
	}))

	require.NoError(t, app.Registry.Register(taskqueue.Task{
		Name: "test.panic",
		Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
			panic("kaboom")
		}),
	}))

	cfg := &settings.WorkerSettings{
		Concurrency: concurrency,
		Queues:      []string{"celery"},
		PollTimeout: time.Second,
	}

	return New(app, cfg), app
}

// runEngine starts the engine in the background and stops it when the test ends
func runEngine(t *testing.T, engine *Engine) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("engine did not shut down")
		}
	})
}

// waitResult waits for a sent task to finish
func waitResult(t *testing.T, res *taskqueue.AsyncResult, timeout time.Duration) *taskqueue.TaskResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	got, err := res.Get(ctx)
	require.NoError(t, err)
	return got
}

func TestStart_RequiresConnectedApp(t *testing.T) {
	engine := New(taskqueue.NewApp("offline"), &settings.WorkerSettings{Concurrency: 1, Queues: []string{"celery"}})
	assert.Error(t, engine.Start(context.Background()))
}

func TestStart_RequiresQueues(t *testing.T) {
	engine, _ := setupTestEngine(t, 1)
	engine.cfg.Queues = nil
	assert.Error(t, engine.Start(context.Background()))
}

func TestStart_Success(t *testing.T) {
	engine, app := setupTestEngine(t, 2)
	runEngine(t, engine)

	res, err := app.SendTask(context.Background(), "test.add", []int{1, 2, 3})
	require.NoError(t, err)

	got := waitResult(t, res, 10*time.Second)
	assert.Equal(t, taskqueue.StateSuccess, got.State)
	assert.JSONEq(t, `6`, string(got.Result))
	assert.Equal(t, "test.add", got.Task)
}

func TestStart_BadArgsFail(t *testing.T) {
	engine, app := setupTestEngine(t, 1)
	runEngine(t, engine)

	res, err := app.SendTask(context.Background(), "test.add", map[string]int{"a": 1})
	require.NoError(t, err)

	got := waitResult(t, res, 10*time.Second)
	assert.Equal(t, taskqueue.StateFailure, got.State)
	assert.NotEmpty(t, got.Error)
}

func TestStart_PanicBecomesFailure(t *testing.T) {
	engine, app := setupTestEngine(t, 1)
	runEngine(t, engine)

	res, err := app.SendTask(context.Background(), "test.panic", nil)
	require.NoError(t, err)

	got := waitResult(t, res, 10*time.Second)
	assert.Equal(t, taskqueue.StateFailure, got.State)
	assert.Contains(t, got.Error, "kaboom")
}

func TestStart_RetryThenSuccessKeepsSuccess(t *testing.T) {
	engine, app := setupTestEngine(t, 4)

	var calls atomic.Int32
	require.NoError(t, app.Registry.Register(taskqueue.Task{
		Name:       "test.flaky",
		MaxRetries: 1,
		Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("first")
			}
			return "ok", nil
		}),
	}))
	runEngine(t, engine)

	res, err := app.SendTask(context.Background(), "test.flaky", nil)
	require.NoError(t, err)

	got := waitResult(t, res, 15*time.Second)
	assert.Equal(t, taskqueue.StateSuccess, got.State)
	assert.JSONEq(t, `"ok"`, string(got.Result))

	// The retry's bookkeeping must not overwrite the final state
	time.Sleep(500 * time.Millisecond)
	state, err := res.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StateSuccess, state)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStart_RetriesExhausted(t *testing.T) {
	engine, app := setupTestEngine(t, 2)

	var calls atomic.Int32
	require.NoError(t, app.Registry.Register(taskqueue.Task{
		Name:       "test.fail",
		MaxRetries: 1,
		Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
			calls.Add(1)
			return nil, errors.New("always fails")
		}),
	}))
	runEngine(t, engine)

	res, err := app.SendTask(context.Background(), "test.fail", nil)
	require.NoError(t, err)

	got := waitResult(t, res, 15*time.Second)
	assert.Equal(t, taskqueue.StateFailure, got.State)
	assert.Equal(t, "always fails", got.Error)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStart_FutureETADoesNotBlockOtherTasks(t *testing.T) {
	engine, app := setupTestEngine(t, 1)
	runEngine(t, engine)
	ctx := context.Background()

	later, err := app.SendTask(ctx, "test.add", []int{1}, taskqueue.WithCountdown(time.Hour))
	require.NoError(t, err)

	now, err := app.SendTask(ctx, "test.add", []int{2, 2})
	require.NoError(t, err)

	got := waitResult(t, now, 5*time.Second)
	assert.Equal(t, taskqueue.StateSuccess, got.State)
	assert.JSONEq(t, `4`, string(got.Result))

	state, err := later.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StatePending, state)

	delayed, err := app.Broker().DelayedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)
}

func TestStart_RunsDueDelayedTasks(t *testing.T) {
	engine, app := setupTestEngine(t, 1)
	runEngine(t, engine)

	res, err := app.SendTask(context.Background(), "test.add", []int{5}, taskqueue.WithCountdown(300*time.Millisecond))
	require.NoError(t, err)

	got := waitResult(t, res, 10*time.Second)
	assert.Equal(t, taskqueue.StateSuccess, got.State)
	assert.JSONEq(t, `5`, string(got.Result))
}

func TestStart_ConsumesEveryQueue(t *testing.T) {
	engine, app := setupTestEngine(t, 1)
	engine.cfg.Queues = []string{"celery", "mail"}

	require.NoError(t, app.Registry.Register(taskqueue.Task{
		Name:  "test.mail",
		Queue: "mail",
		Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
			return "sent", nil
		}),
	}))
	runEngine(t, engine)

	mail, err := app.SendTask(context.Background(), "test.mail", nil)
	require.NoError(t, err)
	add, err := app.SendTask(context.Background(), "test.add", []int{1, 1})
	require.NoError(t, err)

	assert.Equal(t, taskqueue.StateSuccess, waitResult(t, mail, 10*time.Second).State)
	assert.Equal(t, taskqueue.StateSuccess, waitResult(t, add, 10*time.Second).State)
}

func TestStart_ProcessesSentTasksAndShutsDown(t *testing.T) {
	engine, app := setupTestEngine(t, 2)

	var calls atomic.Int32
	require.NoError(t, app.Registry.Register(taskqueue.Task{
		Name: "test.count",
		Handler: taskqueue.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, error) {
			calls.Add(1)
			return "ok", nil
		}),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Start(ctx) }()

	var results []*taskqueue.AsyncResult
	for i := 0; i < 5; i++ {
		res, err := app.SendTask(context.Background(), "test.count", nil)
		require.NoError(t, err)
		results = append(results, res)
	}

	for _, res := range results {
		assert.Equal(t, taskqueue.StateSuccess, waitResult(t, res, 10*time.Second).State)
	}
	assert.Equal(t, int32(5), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not shut down")
	}
}
