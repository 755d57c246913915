// Package workerd runs the task-consuming side of the pipeline: a pool of
// workers dequeues tasks, drives each through its workflow, and records the
// terminal outcome.
package workerd

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"docpipe/internals/outcome"
	"docpipe/internals/pipeline"
	"docpipe/internals/schemas"
	"docpipe/internals/taskq"
)

type Engine struct {
	queue    taskq.Backend
	orch     *pipeline.Orchestrator
	outcomes outcome.Store
	logger   *slog.Logger
	count    int
}

func NewEngine(queue taskq.Backend, orch *pipeline.Orchestrator, outcomes outcome.Store, count int, logger *slog.Logger) *Engine {
	if count < 1 {
		count = 1
	}
	return &Engine{
		queue:    queue,
		orch:     orch,
		outcomes: outcomes,
		logger:   logger,
		count:    count,
	}
}

// Run blocks until the context is canceled, consuming tasks with a fixed
// pool of workers.
func (e *Engine) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.count; i++ {
		i := i
		group.Go(func() error {
			return e.consume(ctx, i)
		})
	}
	return group.Wait()
}

func (e *Engine) consume(ctx context.Context, workerID int) error {
	logger := e.logger.With(slog.Int("worker", workerID))
	logger.Info("worker started")

	for {
		message, err := e.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker stopping")
				return ctx.Err()
			}
			logger.Error("dequeue failed", slog.String("error", err.Error()))
			continue
		}
		e.handle(ctx, logger, message)
	}
}

// handle converts a queue message into a terminal outcome. Outcomes for
// successful tasks are persisted by the delivery stage; only failures are
// recorded here. A message that cannot even be decoded is acked away so it
// cannot wedge the queue.
func (e *Engine) handle(ctx context.Context, logger *slog.Logger, message *taskq.Message) {
	var task schemas.TaskRequest
	if err := json.Unmarshal(message.Payload, &task); err != nil {
		logger.Error("poison message, discarding",
			slog.String("id", message.ID),
			slog.String("error", err.Error()),
		)
		e.ack(ctx, logger, message.ID)
		return
	}
	if issues := schemas.ValidateTaskRequest(&task); issues != nil {
		logger.Error("invalid task, discarding",
			slog.String("id", message.ID),
			slog.Any("issues", issues),
		)
		e.ack(ctx, logger, message.ID)
		return
	}

	taskLogger := logger.With(slog.String("task_id", task.TaskID))
	taskLogger.Info("task dequeued", slog.Int("attempts", message.Attempts))

	result := e.orch.Run(ctx, task)

	if result.Status == outcome.StatusFailed {
		if err := e.outcomes.Put(ctx, result); err != nil {
			taskLogger.Error("failed to persist outcome, returning task to queue",
				slog.String("error", err.Error()),
			)
			if nackErr := e.queue.Nack(ctx, message.ID); nackErr != nil {
				taskLogger.Error("nack failed", slog.String("error", nackErr.Error()))
			}
			return
		}
		taskLogger.Info("task failed", slog.String("reason", result.Error))
	} else {
		taskLogger.Info("task completed")
	}

	e.ack(ctx, taskLogger, message.ID)
}

func (e *Engine) ack(ctx context.Context, logger *slog.Logger, id string) {
	if err := e.queue.Ack(ctx, id); err != nil {
		logger.Error("ack failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}
