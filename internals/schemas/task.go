package schemas

import (
	"strings"

	z "github.com/Oudwins/zog"
)

// TaskRequest is the unit of work submitted by a caller. It travels from the
// gateway through the queue to the worker untouched.
type TaskRequest struct {
	TaskID       string `json:"task_id" zog:"task_id"`
	UserRequest  string `json:"user_request" zog:"user_request"`
	FilePath     string `json:"file_path" zog:"file_path"`
	WorkflowHint string `json:"workflow_hint" zog:"workflow_hint"`
}

var TaskRequestSchema = z.Struct(z.Shape{
	"TaskID":       z.String().Required().Trim(),
	"UserRequest":  z.String().Required().Trim(),
	"FilePath":     z.String().Required().Trim(),
	"WorkflowHint": z.String().Optional().Trim(),
})

// ValidateTaskRequest normalizes and validates a queued task record. The
// flattened issue map is suitable for logging or API responses.
func ValidateTaskRequest(req *TaskRequest) map[string][]string {
	issues := TaskRequestSchema.Validate(req)
	if len(issues) == 0 {
		return nil
	}
	return z.Issues.Flatten(issues)
}

// LooksLikePDF is the upload gate used by the gateway. Matching the original
// boundary: only .pdf files are accepted for processing.
func LooksLikePDF(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
