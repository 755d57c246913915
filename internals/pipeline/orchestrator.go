package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"docpipe/internals/outcome"
	"docpipe/internals/schemas"
	"docpipe/internals/workflow"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowResolver is satisfied by workflow.Store.
type WorkflowResolver interface {
	Resolve(name string) (workflow.Descriptor, error)
}

type Orchestrator struct {
	registry  *Registry
	workflows WorkflowResolver
	classify  workflow.Classifier
	logger    *slog.Logger
}

func NewOrchestrator(registry *Registry, workflows WorkflowResolver, classify workflow.Classifier, logger *slog.Logger) *Orchestrator {
	if classify == nil {
		classify = workflow.KeywordClassifier
	}
	return &Orchestrator{
		registry:  registry,
		workflows: workflows,
		classify:  classify,
		logger:    logger,
	}
}

// Run executes one task to its terminal outcome. Every failure mode,
// including a panic inside the step loop, is converted into a failure
// outcome here; a task can never crash the worker process.
func (o *Orchestrator) Run(ctx context.Context, req schemas.TaskRequest) (out outcome.Outcome) {
	logger := o.logger.With(slog.String("task_id", req.TaskID))

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("pipeline panicked", slog.Any("error", recovered))
			out = outcome.NewFailure(req.TaskID, req.UserRequest, fmt.Sprintf("internal pipeline fault: %v", recovered))
		}
	}()

	descriptor, err := o.selectWorkflow(req)
	if err != nil {
		logger.Error("workflow resolution failed", slog.String("error", err.Error()))
		return outcome.NewFailure(req.TaskID, req.UserRequest, err.Error())
	}
	logger.Info("workflow selected",
		slog.String("workflow", descriptor.Name),
		slog.Int("steps", len(descriptor.Steps)),
	)

	current := schemas.Processing(schemas.TaskInputPayload(req), "task accepted")

	for i, step := range descriptor.Steps {
		stepLogger := logger.With(
			slog.Int("step", i),
			slog.String("stage", step.Stage),
			slog.String("command", step.Command),
		)

		registration, err := o.registry.Resolve(step.Stage)
		if err != nil {
			stepLogger.Error("stage resolution failed", slog.String("error", err.Error()))
			return outcome.NewFailure(req.TaskID, req.UserRequest, err.Error())
		}

		if !registration.accepts(current.Payload.Kind) {
			message := fmt.Sprintf("stage %q cannot consume %s payload", step.Stage, current.Payload.Kind)
			stepLogger.Error("payload variant mismatch", slog.String("kind", string(current.Payload.Kind)))
			return outcome.NewFailure(req.TaskID, req.UserRequest, message)
		}

		stepLogger.Debug("executing step")
		current = registration.Stage.Execute(ctx, current, req, step.Command)

		if current.Status == schemas.StageStatusError {
			message := fmt.Sprintf("stage %q failed: %s", step.Stage, current.Message)
			stepLogger.Error("step reported error", slog.String("message", current.Message))
			return outcome.NewFailure(req.TaskID, req.UserRequest, message)
		}
		stepLogger.Debug("step completed", slog.String("status", string(current.Status)))
	}

	result, err := outcome.NewSuccess(req.TaskID, req.UserRequest, finalResult(current))
	if err != nil {
		logger.Error("failed to encode final result", slog.String("error", err.Error()))
		return outcome.NewFailure(req.TaskID, req.UserRequest, fmt.Sprintf("failed to encode final result: %v", err))
	}

	logger.Info("pipeline completed", slog.String("workflow", descriptor.Name))
	return result
}

// selectWorkflow honors an explicit hint when it resolves, then falls back
// to the classification rule.
func (o *Orchestrator) selectWorkflow(req schemas.TaskRequest) (workflow.Descriptor, error) {
	if req.WorkflowHint != "" {
		descriptor, err := o.workflows.Resolve(req.WorkflowHint)
		if err == nil {
			return descriptor, nil
		}
		if !errors.Is(err, workflow.ErrNotFound) {
			return workflow.Descriptor{}, err
		}
		o.logger.Warn("workflow hint did not resolve, classifying",
			slog.String("task_id", req.TaskID),
			slog.String("hint", req.WorkflowHint),
		)
	}

	name := o.classify(req)
	descriptor, err := o.workflows.Resolve(name)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return workflow.Descriptor{}, fmt.Errorf("%w: %q", ErrWorkflowNotFound, name)
		}
		return workflow.Descriptor{}, err
	}
	return descriptor, nil
}

// finalResult unwraps the last context's payload variant so callers get the
// report object itself, not the union envelope.
func finalResult(sc schemas.StageContext) any {
	if value := sc.Payload.Value(); value != nil {
		return value
	}
	return json.RawMessage(`{}`)
}
