package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JudgeQueue carries ids of submissions awaiting judging. Enqueue is called
// on the request path; Dequeue blocks until a task or context cancellation.
type JudgeQueue interface {
	Enqueue(ctx context.Context, submissionID string) error
	Dequeue(ctx context.Context) (string, error)
}

type redisJudgeQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisJudgeQueue(rdb *redis.Client, key string) JudgeQueue {
	return &redisJudgeQueue{rdb: rdb, key: key}
}

func (q *redisJudgeQueue) Enqueue(ctx context.Context, submissionID string) error {
	if err := q.rdb.LPush(ctx, q.key, submissionID).Err(); err != nil {
		return fmt.Errorf("redisJudgeQueue.Enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks with a short poll interval so a cancelled context is
// noticed promptly even on go-redis versions that do not interrupt BRPOP.
func (q *redisJudgeQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.rdb.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // poll timeout, no task yet
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			return "", fmt.Errorf("redisJudgeQueue.Dequeue: %w", err)
		}
		if len(res) < 2 || res[1] == "" {
			continue
		}
		return res[1], nil
	}
}
