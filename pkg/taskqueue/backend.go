package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	backendsiface "github.com/RichardKnop/machinery/v2/backends/iface"
	"github.com/redis/go-redis/v9"
)

// DefaultResultExpires is how long results are kept when no expiry is configured.
const DefaultResultExpires = 24 * time.Hour

// resultPollInterval is how often WaitForResult re-reads a task's state.
const resultPollInterval = 50 * time.Millisecond

// ResultBackend reads task states written by the machinery Redis backend.
// Safe for concurrent use.
type ResultBackend struct {
	rdb     *redis.Client
	results backendsiface.Backend
}

func newResultBackend(redisOpts *redis.Options, results backendsiface.Backend) *ResultBackend {
	return &ResultBackend{
		rdb:     redis.NewClient(redisOpts),
		results: results,
	}
}

// Close closes the Redis connection. Implements io.Closer.
func (rb *ResultBackend) Close() error {
	return rb.rdb.Close()
}

// Ping verifies result-backend connectivity.
func (rb *ResultBackend) Ping(ctx context.Context) error {
	return rb.rdb.Ping(ctx).Err()
}

// GetResult retrieves the stored state of a task.
// Returns (nil, redis.Nil) if nothing is stored; use IsNotFound to check.
func (rb *ResultBackend) GetResult(ctx context.Context, taskID string) (*TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, err := rb.results.GetState(taskID)
	if err != nil {
		// The backend client reports a missing key in its own error type
		if n, exErr := rb.rdb.Exists(ctx, ResultKey(taskID)).Result(); exErr == nil && n == 0 {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read task result: %w", err)
	}

	result, err := resultFromState(state)
	if err != nil {
		return nil, fmt.Errorf("failed to decode task result: %w", err)
	}

	return result, nil
}

// WaitForResult polls until the task reaches a ready state or ctx is done.
func (rb *ResultBackend) WaitForResult(ctx context.Context, taskID string) (*TaskResult, error) {
	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()

	for {
		result, err := rb.GetResult(ctx, taskID)
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		if result != nil && result.State.Ready() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Forget deletes a task's stored state.
func (rb *ResultBackend) Forget(ctx context.Context, taskID string) error {
	if err := rb.results.PurgeState(taskID); err != nil {
		return fmt.Errorf("failed to delete task result: %w", err)
	}
	return nil
}

// ScanResults returns the ids of stored results whose id starts with prefix.
// Uses SCAN so large keyspaces are walked without blocking Redis.
func (rb *ResultBackend) ScanResults(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	iter := rb.rdb.Scan(ctx, 0, ResultKey(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan task results: %w", err)
	}

	return ids, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
