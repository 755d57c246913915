// Package pipeline executes one task end-to-end against a resolved workflow:
// it threads a single mutable stage context through an ordered list of
// stages and guarantees the task reaches exactly one terminal outcome.
package pipeline

import (
	"context"

	"docpipe/internals/schemas"
)

// Stage is the uniform contract every pipeline stage satisfies. Execute
// consumes the previous stage's full result (or the initial task wrapper),
// the original user request, and a stage-specific command, and returns a
// replacement context. Failures are reported in-band via the error status;
// a stage must never panic on bad input or a collaborator fault. The task
// id inside req is for log correlation only, never control flow.
type Stage interface {
	Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext
}

// StageFunc adapts a bare function to the Stage interface.
type StageFunc func(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext

func (f StageFunc) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	return f(ctx, in, req, command)
}
