package worker

import (
	"context"
	"errors"
	"sync"
	"codebattle/internal/common/logger"
	"codebattle/internal/platform/queue"

	"go.uber.org/zap"
)

// Judger runs one queued submission to a terminal verdict.
// Implemented by service.SubmissionService.
type Judger interface {
	RunJudging(ctx context.Context, submissionID string)
}

// JudgeWorker drains the judge queue and runs each submission through the
// judging pipeline. Concurrency is bounded by a semaphore; Stop waits for
// tasks already dequeued to finish so no submission is left RUNNING.
type JudgeWorker struct {
	queue    queue.JudgeQueue
	judger   Judger
	poolSize int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJudgeWorker(q queue.JudgeQueue, judger Judger, poolSize int) *JudgeWorker {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &JudgeWorker{queue: q, judger: judger, poolSize: poolSize}
}

func (w *JudgeWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	logger.Info("judge worker started", zap.Int("pool_size", w.poolSize))
}

func (w *JudgeWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	sem := make(chan struct{}, w.poolSize)

	for {
		submissionID, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			logger.Error("judge queue dequeue failed", zap.Error(err))
			continue
		}

		sem <- struct{}{}
		w.wg.Add(1)
		go func(id string) {
			defer w.wg.Done()
			defer func() { <-sem }()
			// Judging a dequeued task survives shutdown; the task would
			// otherwise be lost to the queue.
			w.judger.RunJudging(context.WithoutCancel(ctx), id)
		}(submissionID)
	}
}

// Stop cancels the dequeue loop and blocks until in-flight judging completes.
func (w *JudgeWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Info("judge worker stopped")
}
