package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docpipe/internals/outcome"
	"docpipe/internals/schemas"
)

// HandlerTaskStatus answers a status query from the consume-once outcome
// store. A present record is returned and deleted in the same step; an
// absent record is reported as still processing, because the store cannot
// tell a queued task from an id it has never seen.
func (s *Server) HandlerTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "task id is required", nil), Render.Status(http.StatusBadRequest))
		return
	}

	out, err := s.outcomes.GetAndConsume(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, outcome.ErrNotFound) {
			RenderJSON(w, r, schemas.TaskStatusResponse{TaskID: taskID, Status: schemas.TaskPhaseProcessing})
			return
		}
		s.Base.Logger.Error("failed to read task outcome", "error", err, "task_id", taskID)
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to read task status", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	response := schemas.TaskStatusResponse{TaskID: taskID}
	switch out.Status {
	case outcome.StatusSuccess:
		response.Status = schemas.TaskPhaseSuccess
		response.Result = out.Result
	default:
		response.Status = schemas.TaskPhaseFailed
		response.Error = out.Error
	}
	RenderJSON(w, r, response)
}
