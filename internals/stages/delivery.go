package stages

import (
	"context"
	"log/slog"
	"time"

	"docpipe/internals/outcome"
	"docpipe/internals/schemas"
)

const CommandFormatFinalReport = "format_final_report"

const (
	resultTypeAnalysis = "analysis"
	resultTypeDegraded = "degraded_analysis"
)

// Delivery formats the final report and persists the success outcome. It is
// the durability point of the pipeline: a task is only queryable as SUCCESS
// after this stage's Put lands.
type Delivery struct {
	outcomes outcome.Store
	now      func() time.Time
	logger   *slog.Logger
}

func NewDelivery(outcomes outcome.Store, logger *slog.Logger) *Delivery {
	return &Delivery{outcomes: outcomes, now: time.Now, logger: logger}
}

func (s *Delivery) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	logger := s.logger.With(slog.String("task_id", req.TaskID), slog.String("stage", NameDelivery))

	if command != CommandFormatFinalReport {
		logger.Warn("unknown command", slog.String("command", command))
		return schemas.Errorf("unknown command: %s", command)
	}

	if in.Payload.Kind != schemas.PayloadAnalysis || in.Payload.Analysis == nil {
		return schemas.Errorf("delivery stage requires analysis output, got %s", in.Payload.Kind)
	}
	analysis := *in.Payload.Analysis

	resultType := resultTypeAnalysis
	if analysis.Degraded {
		resultType = resultTypeDegraded
	}

	report := schemas.Report{
		TaskID:        req.TaskID,
		UserQuery:     req.UserRequest,
		Timestamp:     s.now().UTC().Format(time.RFC3339),
		Status:        "COMPLETED",
		ResultType:    resultType,
		ReportContent: analysis.Answer,
	}

	result, err := outcome.NewSuccess(req.TaskID, req.UserRequest, report)
	if err != nil {
		logger.Error("report encoding failed", slog.String("error", err.Error()))
		return schemas.Errorf("report encoding failed: %v", err)
	}
	if err := s.outcomes.Put(ctx, result); err != nil {
		logger.Error("outcome persistence failed", slog.String("error", err.Error()))
		return schemas.Errorf("outcome persistence failed: %v", err)
	}

	logger.Info("report delivered", slog.String("result_type", resultType))
	return schemas.Success(schemas.ReportPayload(report), "final report formatted")
}
