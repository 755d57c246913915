package stages

import (
	"context"
	"log/slog"

	"docpipe/internals/schemas"
)

const (
	CommandSearchKnowledge  = "search_knowledge_base"
	CommandStoreFinalReport = "store_final_report"
)

// KnowledgeStore is the external vector-store collaborator (knowledge.Client).
// Search never returns an error: a failed or empty search is an empty slice.
type KnowledgeStore interface {
	Add(ctx context.Context, texts []string, taskID string, documentID string) error
	Search(ctx context.Context, query string, topK int) []schemas.Match
}

type Memory struct {
	store  KnowledgeStore
	topK   int
	logger *slog.Logger
}

func NewMemory(store KnowledgeStore, topK int, logger *slog.Logger) *Memory {
	return &Memory{store: store, topK: topK, logger: logger}
}

func (s *Memory) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	logger := s.logger.With(slog.String("task_id", req.TaskID), slog.String("stage", NameMemory))

	switch command {
	case CommandSearchKnowledge:
		return s.ingestAndSearch(ctx, in, req, logger)
	case CommandStoreFinalReport:
		// Archival hook. The payload passes through untouched so a
		// descriptor can slot this between analysis and delivery.
		return schemas.Processing(in.Payload, "report noted")
	default:
		logger.Warn("unknown command", slog.String("command", command))
		return schemas.Errorf("unknown command: %s", command)
	}
}

func (s *Memory) ingestAndSearch(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, logger *slog.Logger) schemas.StageContext {
	if in.Payload.Kind != schemas.PayloadExtraction || in.Payload.Extraction == nil {
		return schemas.Errorf("memory stage requires extraction output, got %s", in.Payload.Kind)
	}
	extraction := *in.Payload.Extraction

	if len(extraction.Chunks) > 0 {
		if err := s.store.Add(ctx, extraction.Chunks, req.TaskID, req.TaskID); err != nil {
			logger.Error("knowledge ingestion failed", slog.String("error", err.Error()))
			return schemas.Errorf("knowledge ingestion failed: %v", err)
		}
	}

	matches := s.store.Search(ctx, req.UserRequest, s.topK)
	logger.Info("knowledge search completed", slog.Int("matches", len(matches)))

	return schemas.Processing(
		schemas.RetrievalPayload(schemas.RetrievalOutput{
			Chunks:      extraction.Chunks,
			Matches:     matches,
			UserRequest: req.UserRequest,
		}),
		"knowledge base searched",
	)
}
