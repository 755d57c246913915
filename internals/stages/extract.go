// Package stages holds the pipeline stage implementations. Each stage owns
// one concern, declares the payload variants it consumes, and reports every
// failure in-band through the stage context status. Collaborator clients
// are injected once at startup and shared across tasks.
package stages

import (
	"context"
	"log/slog"

	"docpipe/internals/schemas"
)

const (
	NameExtract  = "extract"
	NameMemory   = "memory"
	NameAnalysis = "analysis"
	NameDelivery = "delivery"
)

const CommandParseAndChunk = "parse_and_chunk_pdf"

// ContentReader is the text-extraction collaborator (pdfreader.Local).
type ContentReader interface {
	ReadContent(path string) (string, error)
}

// Chunker is the pure sliding-window splitter (pdfreader.Chunk).
type Chunker func(text string, size int, overlap int) []string

type Extract struct {
	reader  ContentReader
	chunk   Chunker
	size    int
	overlap int
	logger  *slog.Logger
}

func NewExtract(reader ContentReader, chunk Chunker, size int, overlap int, logger *slog.Logger) *Extract {
	return &Extract{reader: reader, chunk: chunk, size: size, overlap: overlap, logger: logger}
}

func (s *Extract) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	logger := s.logger.With(slog.String("task_id", req.TaskID), slog.String("stage", NameExtract))

	if command != CommandParseAndChunk {
		logger.Warn("unknown command", slog.String("command", command))
		return schemas.Errorf("unknown command: %s", command)
	}

	path := req.FilePath
	if in.Payload.Kind == schemas.PayloadTaskInput && in.Payload.Task != nil {
		path = in.Payload.Task.FilePath
	}

	logger.Info("extracting document", slog.String("file_path", path))
	text, err := s.reader.ReadContent(path)
	if err != nil {
		logger.Error("extraction failed", slog.String("error", err.Error()))
		return schemas.Errorf("extraction failed: %v", err)
	}

	chunks := s.chunk(text, s.size, s.overlap)
	logger.Info("extraction completed", slog.Int("chunks", len(chunks)))

	return schemas.Processing(
		schemas.ExtractionPayload(schemas.ExtractionOutput{FilePath: path, Chunks: chunks}),
		"document extracted and chunked",
	)
}
