package schemas

import "fmt"

type StageStatus string

const (
	StageStatusProcessing StageStatus = "processing"
	StageStatusSuccess    StageStatus = "success"
	StageStatusError      StageStatus = "error"
)

// Continues reports whether the pipeline may advance past a stage that
// returned this status. Both processing and success are continue states;
// only error halts.
func (s StageStatus) Continues() bool {
	return s == StageStatusProcessing || s == StageStatusSuccess
}

type PayloadKind string

const (
	PayloadTaskInput  PayloadKind = "task_input"
	PayloadExtraction PayloadKind = "extraction"
	PayloadRetrieval  PayloadKind = "retrieval"
	PayloadAnalysis   PayloadKind = "analysis"
	PayloadReport     PayloadKind = "report"
)

// ExtractionOutput is what the extract stage hands to its successor:
// the source path plus ordered text chunks ready for the knowledge store.
type ExtractionOutput struct {
	FilePath string   `json:"file_path"`
	Chunks   []string `json:"chunks"`
}

// RetrievalOutput bundles the freshly extracted chunks with prior matches
// from the knowledge store. This is the analysis stage's grounding context.
type RetrievalOutput struct {
	Chunks      []string `json:"chunks"`
	Matches     []Match  `json:"matches"`
	UserRequest string   `json:"user_request"`
}

type Match struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type AnalysisOutput struct {
	Answer   string `json:"answer"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Report is the final deliverable formatted by the delivery stage and
// returned verbatim to the status-query caller.
type Report struct {
	TaskID        string `json:"task_id"`
	UserQuery     string `json:"user_query"`
	Timestamp     string `json:"timestamp"`
	Status        string `json:"status"`
	ResultType    string `json:"result_type"`
	ReportContent string `json:"report_content"`
}

// StagePayload is the tagged union threaded between stages. Exactly one
// variant is set, identified by Kind; each registered stage declares the
// kinds it consumes and the orchestrator checks the hop before invoking.
type StagePayload struct {
	Kind       PayloadKind       `json:"kind"`
	Task       *TaskRequest      `json:"task,omitempty"`
	Extraction *ExtractionOutput `json:"extraction,omitempty"`
	Retrieval  *RetrievalOutput  `json:"retrieval,omitempty"`
	Analysis   *AnalysisOutput   `json:"analysis,omitempty"`
	Report     *Report           `json:"report,omitempty"`
}

// Value returns the active variant, or nil for an empty payload.
func (p StagePayload) Value() any {
	switch p.Kind {
	case PayloadTaskInput:
		return p.Task
	case PayloadExtraction:
		return p.Extraction
	case PayloadRetrieval:
		return p.Retrieval
	case PayloadAnalysis:
		return p.Analysis
	case PayloadReport:
		return p.Report
	default:
		return nil
	}
}

func TaskInputPayload(req TaskRequest) StagePayload {
	return StagePayload{Kind: PayloadTaskInput, Task: &req}
}

func ExtractionPayload(out ExtractionOutput) StagePayload {
	return StagePayload{Kind: PayloadExtraction, Extraction: &out}
}

func RetrievalPayload(out RetrievalOutput) StagePayload {
	return StagePayload{Kind: PayloadRetrieval, Retrieval: &out}
}

func AnalysisPayload(out AnalysisOutput) StagePayload {
	return StagePayload{Kind: PayloadAnalysis, Analysis: &out}
}

func ReportPayload(report Report) StagePayload {
	return StagePayload{Kind: PayloadReport, Report: &report}
}

// StageContext is the mutable payload threaded through the pipeline. Each
// stage replaces it wholesale with its own result.
type StageContext struct {
	Status  StageStatus  `json:"status"`
	Payload StagePayload `json:"payload"`
	Message string       `json:"message"`
}

func Processing(payload StagePayload, message string) StageContext {
	return StageContext{Status: StageStatusProcessing, Payload: payload, Message: message}
}

func Success(payload StagePayload, message string) StageContext {
	return StageContext{Status: StageStatusSuccess, Payload: payload, Message: message}
}

func Errorf(format string, args ...any) StageContext {
	return StageContext{Status: StageStatusError, Message: fmt.Sprintf(format, args...)}
}
