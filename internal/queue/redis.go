package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue pops job payloads from a Redis list. Producers LPUSH and the
// worker BLPOPs, so a popped job is gone whether or not it is indexed.
type RedisQueue struct {
	client  *redis.Client
	name    string
	timeout time.Duration
}

// NewRedisQueue parses a redis:// URL. A zero timeout makes Dequeue block
// until a job arrives or ctx is cancelled.
func NewRedisQueue(url, name string, timeout time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisQueueFromClient(redis.NewClient(opts), name, timeout), nil
}

func NewRedisQueueFromClient(client *redis.Client, name string, timeout time.Duration) *RedisQueue {
	return &RedisQueue{client: client, name: name, timeout: timeout}
}

// Dequeue returns (nil, nil) when the pop timed out on an empty list.
func (q *RedisQueue) Dequeue(ctx context.Context) ([]byte, error) {
	res, err := q.client.BLPop(ctx, q.timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blpop %s: %w", q.name, err)
	}
	// BLPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("blpop %s: unexpected reply of length %d", q.name, len(res))
	}
	return []byte(res[1]), nil
}

// Push enqueues a payload the same way the upstream API does.
func (q *RedisQueue) Push(ctx context.Context, body []byte) error {
	return q.client.LPush(ctx, q.name, body).Err()
}

// Len reports how many jobs are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
