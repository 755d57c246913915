package workerd

import (
	"log/slog"

	"docpipe/internals/conf"
	"docpipe/internals/env"
	"docpipe/internals/outcome"
	"docpipe/internals/pipeline"
	"docpipe/internals/schemas"
	"docpipe/internals/stages"
	"docpipe/internals/taskq"
	"docpipe/internals/tools/generate"
	"docpipe/internals/tools/knowledge"
	"docpipe/internals/tools/pdfreader"
	"docpipe/internals/workflow"
)

// BuildEngine wires the full pipeline: collaborator clients, the stage
// registry, the workflow store, and the worker pool around them.
func BuildEngine(config *conf.Config, environ *env.EnvStruct, queue taskq.Backend, outcomes outcome.Store, logger *slog.Logger) (*Engine, error) {
	knowledgeURL := config.Knowledge.URL
	if environ.KNOWLEDGE_URL != "" {
		knowledgeURL = environ.KNOWLEDGE_URL
	}
	generationURL := config.Generation.URL
	if environ.GENERATION_URL != "" {
		generationURL = environ.GENERATION_URL
	}

	reader := pdfreader.NewLocal()
	knowledgeClient := knowledge.NewClient(knowledgeURL, logger)
	generateClient := generate.NewClient(generationURL, generate.WithRetryMax(uint64(config.Generation.RetryMax)))

	registry := pipeline.NewRegistry()
	if err := registry.Register(stages.NameExtract,
		stages.NewExtract(reader, pdfreader.Chunk, config.Extraction.ChunkSize, config.Extraction.ChunkOverlap, logger),
		schemas.PayloadTaskInput,
	); err != nil {
		return nil, err
	}
	if err := registry.Register(stages.NameMemory,
		stages.NewMemory(knowledgeClient, config.Knowledge.TopK, logger),
		schemas.PayloadExtraction, schemas.PayloadAnalysis,
	); err != nil {
		return nil, err
	}
	if err := registry.Register(stages.NameAnalysis,
		stages.NewAnalysis(generateClient, logger),
		schemas.PayloadRetrieval, schemas.PayloadExtraction,
	); err != nil {
		return nil, err
	}
	if err := registry.Register(stages.NameDelivery,
		stages.NewDelivery(outcomes, logger),
		schemas.PayloadAnalysis,
	); err != nil {
		return nil, err
	}

	workflows := workflow.NewStore(config.Workflows.Dir)
	orchestrator := pipeline.NewOrchestrator(registry, workflows, workflow.KeywordClassifier, logger)

	return NewEngine(queue, orchestrator, outcomes, config.Worker.Count, logger), nil
}
