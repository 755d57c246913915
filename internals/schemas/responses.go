package schemas

import "encoding/json"

// TaskPhase is the coarse state reported to status-query callers. An absent
// outcome record is reported as processing: the store cannot tell a queued
// task from one it never saw.
type TaskPhase string

const (
	TaskPhasePending    TaskPhase = "PENDING"
	TaskPhaseProcessing TaskPhase = "PROCESSING"
	TaskPhaseSuccess    TaskPhase = "SUCCESS"
	TaskPhaseFailed     TaskPhase = "FAILED"
)

type TaskStatusResponse struct {
	TaskID string          `json:"task_id"`
	Status TaskPhase       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type EnqueueResponse struct {
	TaskID string    `json:"task_id"`
	Status TaskPhase `json:"status"`
}
