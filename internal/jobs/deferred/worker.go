package deferred

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	redrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/redis"
)

const claimBatchSize = 20

// Handler executes one claimed task. The subject is the id the task was
// scheduled against, a post id for rechecks, a room id for payouts.
type Handler func(ctx context.Context, subject string) error

type taskQueue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]redrepo.Task, error)
	Schedule(ctx context.Context, task redrepo.Task, due time.Time) error
}

// Worker drains the durable deferred-task queue on a fixed tick and
// dispatches each task to the handler registered for its kind. A failing
// handler requeues the task with a short backoff rather than dropping it.
type Worker struct {
	queue      taskQueue
	handlers   map[string]Handler
	interval   time.Duration
	retryDelay time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewWorker(queue taskQueue, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		queue:      queue,
		handlers:   make(map[string]Handler),
		interval:   interval,
		retryDelay: 30 * time.Second,
		now:        time.Now,
		logger:     logger,
	}
}

func (w *Worker) Register(kind string, handler Handler) {
	w.handlers[kind] = handler
}

func (w *Worker) Run(ctx context.Context) error {
	if w.queue == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.Warn("deferred tick failed", zap.Error(err))
			}
		}
	}
}

// Tick claims and processes one batch of due tasks.
func (w *Worker) Tick(ctx context.Context) error {
	tasks, err := w.queue.ClaimDue(ctx, w.now(), claimBatchSize)
	if err != nil {
		return fmt.Errorf("claim due tasks: %w", err)
	}

	for _, task := range tasks {
		handler, ok := w.handlers[task.Kind]
		if !ok {
			w.logger.Warn("dropping deferred task of unknown kind",
				zap.String("kind", task.Kind), zap.String("task_id", task.ID))
			continue
		}

		if err := handler(ctx, task.Subject); err != nil {
			w.logger.Warn("deferred task failed, requeueing",
				zap.Error(err), zap.String("kind", task.Kind), zap.String("task_id", task.ID))
			if reqErr := w.queue.Schedule(ctx, task, w.now().Add(w.retryDelay)); reqErr != nil {
				w.logger.Error("requeue deferred task failed",
					zap.Error(reqErr), zap.String("task_id", task.ID))
			}
		}
	}

	return nil
}
