package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"docpipe/internals/outcome"
	"docpipe/internals/schemas"
	"docpipe/internals/workflow"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingStage notes every call and replays a scripted result per command.
type recordingStage struct {
	calls   []string
	results map[string]schemas.StageContext
	inputs  []schemas.StageContext
}

func (s *recordingStage) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	s.calls = append(s.calls, command)
	s.inputs = append(s.inputs, in)
	if result, ok := s.results[command]; ok {
		return result
	}
	return schemas.Processing(in.Payload, "noop")
}

type staticResolver map[string]workflow.Descriptor

func (r staticResolver) Resolve(name string) (workflow.Descriptor, error) {
	descriptor, ok := r[name]
	if !ok {
		return workflow.Descriptor{}, workflow.ErrNotFound
	}
	return descriptor, nil
}

func testRequest() schemas.TaskRequest {
	return schemas.TaskRequest{TaskID: "t-1", UserRequest: "summarize", FilePath: "/tmp/a.pdf"}
}

func twoStepWorkflow() workflow.Descriptor {
	return workflow.Descriptor{
		Name: "wf",
		Steps: []workflow.Step{
			{Stage: "first", Command: "cmd_one"},
			{Stage: "second", Command: "cmd_two"},
		},
	}
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	first := &recordingStage{results: map[string]schemas.StageContext{
		"cmd_one": schemas.Processing(schemas.ExtractionPayload(schemas.ExtractionOutput{Chunks: []string{"c"}}), "done"),
	}}
	second := &recordingStage{results: map[string]schemas.StageContext{
		"cmd_two": schemas.Success(schemas.AnalysisPayload(schemas.AnalysisOutput{Answer: "a"}), "done"),
	}}

	registry := NewRegistry()
	if err := registry.Register("first", first, schemas.PayloadTaskInput); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("second", second, schemas.PayloadExtraction); err != nil {
		t.Fatal(err)
	}

	orch := NewOrchestrator(registry, staticResolver{"wf": twoStepWorkflow()}, func(schemas.TaskRequest) string { return "wf" }, discard)
	out := orch.Run(context.Background(), testRequest())

	if out.Status != outcome.StatusSuccess {
		t.Fatalf("status = %s, error = %s", out.Status, out.Error)
	}
	if len(first.calls) != 1 || first.calls[0] != "cmd_one" {
		t.Fatalf("first calls = %v", first.calls)
	}
	if len(second.calls) != 1 || second.calls[0] != "cmd_two" {
		t.Fatalf("second calls = %v", second.calls)
	}

	// the second stage must see the first stage's output, not the task input
	if second.inputs[0].Payload.Kind != schemas.PayloadExtraction {
		t.Fatalf("second stage input kind = %s", second.inputs[0].Payload.Kind)
	}

	var result schemas.AnalysisOutput
	if err := json.Unmarshal(out.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Answer != "a" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunHaltsOnStageError(t *testing.T) {
	first := &recordingStage{results: map[string]schemas.StageContext{
		"cmd_one": schemas.Errorf("extraction exploded"),
	}}
	second := &recordingStage{}

	registry := NewRegistry()
	if err := registry.Register("first", first, schemas.PayloadTaskInput); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("second", second, schemas.PayloadExtraction); err != nil {
		t.Fatal(err)
	}

	orch := NewOrchestrator(registry, staticResolver{"wf": twoStepWorkflow()}, func(schemas.TaskRequest) string { return "wf" }, discard)
	out := orch.Run(context.Background(), testRequest())

	if out.Status != outcome.StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.Contains(out.Error, `stage "first" failed`) || !strings.Contains(out.Error, "extraction exploded") {
		t.Fatalf("error = %q", out.Error)
	}
	if len(second.calls) != 0 {
		t.Fatalf("second stage ran after failure: %v", second.calls)
	}
}

func TestRunFailsOnUnknownStage(t *testing.T) {
	orch := NewOrchestrator(NewRegistry(), staticResolver{"wf": twoStepWorkflow()}, func(schemas.TaskRequest) string { return "wf" }, discard)
	out := orch.Run(context.Background(), testRequest())

	if out.Status != outcome.StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.Contains(out.Error, "unknown stage") {
		t.Fatalf("error = %q", out.Error)
	}
}

func TestRunFailsOnPayloadVariantMismatch(t *testing.T) {
	// first emits an analysis payload but second only consumes extraction
	first := &recordingStage{results: map[string]schemas.StageContext{
		"cmd_one": schemas.Processing(schemas.AnalysisPayload(schemas.AnalysisOutput{Answer: "a"}), "done"),
	}}
	second := &recordingStage{}

	registry := NewRegistry()
	if err := registry.Register("first", first, schemas.PayloadTaskInput); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("second", second, schemas.PayloadExtraction); err != nil {
		t.Fatal(err)
	}

	orch := NewOrchestrator(registry, staticResolver{"wf": twoStepWorkflow()}, func(schemas.TaskRequest) string { return "wf" }, discard)
	out := orch.Run(context.Background(), testRequest())

	if out.Status != outcome.StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.Contains(out.Error, "cannot consume") {
		t.Fatalf("error = %q", out.Error)
	}
	if len(second.calls) != 0 {
		t.Fatalf("second stage ran on mismatched payload")
	}
}

func TestRunFailsWhenWorkflowMissing(t *testing.T) {
	orch := NewOrchestrator(NewRegistry(), staticResolver{}, func(schemas.TaskRequest) string { return "ghost" }, discard)
	out := orch.Run(context.Background(), testRequest())

	if out.Status != outcome.StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.Contains(out.Error, "workflow not found") {
		t.Fatalf("error = %q", out.Error)
	}
}

func TestRunHonorsHintBeforeClassifier(t *testing.T) {
	stage := &recordingStage{results: map[string]schemas.StageContext{
		"only": schemas.Success(schemas.AnalysisPayload(schemas.AnalysisOutput{Answer: "hinted"}), "done"),
	}}
	registry := NewRegistry()
	if err := registry.Register("solo", stage, schemas.PayloadTaskInput); err != nil {
		t.Fatal(err)
	}

	hinted := workflow.Descriptor{Name: "hinted", Steps: []workflow.Step{{Stage: "solo", Command: "only"}}}
	resolver := staticResolver{"hinted": hinted}
	classify := func(schemas.TaskRequest) string {
		t.Fatal("classifier must not run when the hint resolves")
		return ""
	}

	req := testRequest()
	req.WorkflowHint = "hinted"
	out := NewOrchestrator(registry, resolver, classify, discard).Run(context.Background(), req)
	if out.Status != outcome.StatusSuccess {
		t.Fatalf("status = %s, error = %s", out.Status, out.Error)
	}
}

func TestRunFallsBackWhenHintUnknown(t *testing.T) {
	stage := &recordingStage{results: map[string]schemas.StageContext{
		"only": schemas.Success(schemas.AnalysisPayload(schemas.AnalysisOutput{Answer: "ok"}), "done"),
	}}
	registry := NewRegistry()
	if err := registry.Register("solo", stage, schemas.PayloadTaskInput); err != nil {
		t.Fatal(err)
	}

	fallback := workflow.Descriptor{Name: "fallback", Steps: []workflow.Step{{Stage: "solo", Command: "only"}}}
	resolver := staticResolver{"fallback": fallback}

	req := testRequest()
	req.WorkflowHint = "does_not_exist"
	out := NewOrchestrator(registry, resolver, func(schemas.TaskRequest) string { return "fallback" }, discard).Run(context.Background(), req)
	if out.Status != outcome.StatusSuccess {
		t.Fatalf("status = %s, error = %s", out.Status, out.Error)
	}
}

type panickingStage struct{}

func (panickingStage) Execute(ctx context.Context, in schemas.StageContext, req schemas.TaskRequest, command string) schemas.StageContext {
	panic("stage blew up")
}

func TestRunRecoversPanicsIntoFailure(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("boom", panickingStage{}, schemas.PayloadTaskInput); err != nil {
		t.Fatal(err)
	}
	descriptor := workflow.Descriptor{Name: "wf", Steps: []workflow.Step{{Stage: "boom", Command: "x"}}}

	out := NewOrchestrator(registry, staticResolver{"wf": descriptor}, func(schemas.TaskRequest) string { return "wf" }, discard).Run(context.Background(), testRequest())
	if out.Status != outcome.StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
	if !strings.Contains(out.Error, "internal pipeline fault") {
		t.Fatalf("error = %q", out.Error)
	}
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	registry := NewRegistry()
	stage := &recordingStage{}
	if err := registry.Register("a", stage); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register("a", stage); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := registry.Register("", stage); err == nil {
		t.Fatal("expected name error")
	}
	if err := registry.Register("b", nil); err == nil {
		t.Fatal("expected nil stage error")
	}
	if _, err := registry.Resolve("ghost"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}
