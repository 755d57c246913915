// Package outcome persists the terminal result of a task, keyed by task id.
// Presence of a record is the only signal that a task finished: the store
// cannot distinguish a queued task from one it has never seen, so an absent
// record is reported upstream as "still processing".
package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("outcome not found")

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Outcome struct {
	TaskID      string          `json:"task_id"`
	UserRequest string          `json:"user_request"`
	Status      Status          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	FinishedAt  string          `json:"finished_at"`
}

func NewSuccess(taskID, userRequest string, result any) (Outcome, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		TaskID:      taskID,
		UserRequest: userRequest,
		Status:      StatusSuccess,
		Result:      data,
		FinishedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func NewFailure(taskID, userRequest, message string) Outcome {
	return Outcome{
		TaskID:      taskID,
		UserRequest: userRequest,
		Status:      StatusFailed,
		Error:       message,
		FinishedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Store is the persistence boundary for terminal task results.
type Store interface {
	// Put records the outcome, overwriting any prior record for the id.
	Put(ctx context.Context, out Outcome) error
	// GetAndConsume returns the outcome and atomically removes it, or
	// ErrNotFound. A consumed outcome is gone: the read is single-shot.
	GetAndConsume(ctx context.Context, taskID string) (Outcome, error)
}
