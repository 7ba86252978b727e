package taskqueue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Broker inspects and maintains the queues in the broker database.
// Publishing and consuming go through the machinery server; this client
// covers what that server does not expose. Safe for concurrent use.
type Broker struct {
	rdb     *redis.Client
	appName string
}

// NewBroker creates a broker client for the named application.
// Returns an error if appName is empty.
func NewBroker(redisOpts *redis.Options, appName string) (*Broker, error) {
	if appName == "" {
		return nil, fmt.Errorf("app name cannot be empty")
	}

	return &Broker{
		rdb:     redis.NewClient(redisOpts),
		appName: appName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (b *Broker) Close() error {
	return b.rdb.Close()
}

// Ping verifies broker connectivity.
func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// QueueLength returns the number of messages ready to run on a queue.
// Tasks waiting for their ETA are not counted.
func (b *Broker) QueueLength(ctx context.Context, queue string) (int64, error) {
	n, err := b.rdb.LLen(ctx, QueueKey(b.appName, queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// DelayedCount returns the number of tasks waiting for their ETA, across all queues.
func (b *Broker) DelayedCount(ctx context.Context) (int64, error) {
	n, err := b.rdb.ZCard(ctx, DelayedTasksKey(b.appName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed task count: %w", err)
	}
	return n, nil
}

// Purge discards every ready message on a queue and returns how many there were.
func (b *Broker) Purge(ctx context.Context, queue string) (int64, error) {
	key := QueueKey(b.appName, queue)

	var llen *redis.IntCmd
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		llen = pipe.LLen(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue: %w", err)
	}

	return llen.Val(), nil
}
