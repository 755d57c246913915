package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docpipe/internals/schemas"
)

const CommandGenerateAnswer = "generate_answer_from_context"

// Generator is the text-generation collaborator (generate.Client).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Analysis struct {
	generator Generator
	logger    *slog.Logger
}

func NewAnalysis(generator Generator, logger *slog.Logger) *Analysis {
	return &Analysis{generator: generator, logger: logger}
}

func (s *Analysis) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	logger := s.logger.With(slog.String("task_id", req.TaskID), slog.String("stage", NameAnalysis))

	if command != CommandGenerateAnswer {
		logger.Warn("unknown command", slog.String("command", command))
		return schemas.Errorf("unknown command: %s", command)
	}

	prompt, err := buildPrompt(in, req)
	if err != nil {
		return schemas.Errorf("%v", err)
	}

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		// Generation trouble does not kill the task. The caller gets an
		// apologetic answer and the degraded flag instead of a failure.
		logger.Warn("generation degraded", slog.String("error", err.Error()))
		return schemas.Processing(
			schemas.AnalysisPayload(schemas.AnalysisOutput{
				Answer:   "The analysis service was unavailable, so no answer could be generated for this document.",
				Degraded: true,
			}),
			"answer generation degraded",
		)
	}

	logger.Info("answer generated", slog.Int("answer_len", len(answer)))
	return schemas.Processing(
		schemas.AnalysisPayload(schemas.AnalysisOutput{Answer: answer}),
		"answer generated",
	)
}

// buildPrompt accepts either retrieval output or raw extraction output, so
// descriptors may route to analysis with or without a memory step.
func buildPrompt(in schemas.StageContext, req schemas.TaskRequest) (string, error) {
	var pieces []string
	switch in.Payload.Kind {
	case schemas.PayloadRetrieval:
		if in.Payload.Retrieval == nil {
			return "", fmt.Errorf("analysis stage received empty retrieval output")
		}
		for _, m := range in.Payload.Retrieval.Matches {
			pieces = append(pieces, m.Text)
		}
		if len(pieces) == 0 {
			pieces = in.Payload.Retrieval.Chunks
		}
	case schemas.PayloadExtraction:
		if in.Payload.Extraction == nil {
			return "", fmt.Errorf("analysis stage received empty extraction output")
		}
		pieces = in.Payload.Extraction.Chunks
	default:
		return "", fmt.Errorf("analysis stage requires retrieval or extraction output, got %s", in.Payload.Kind)
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the provided document context.\n\n")
	b.WriteString("Context:\n")
	for _, p := range pieces {
		b.WriteString(p)
		b.WriteString("\n---\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(req.UserRequest)
	return b.String(), nil
}
