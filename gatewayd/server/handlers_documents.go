package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docpipe/internals/schemas"
)

const maxUploadBytes = 64 << 20

var pdfMagic = []byte("%PDF-")

// HandlerSubmitDocument accepts a multipart form with a "file" part (the
// PDF), a "query" field, and an optional "workflow" field. The file is
// persisted under the data directory before the task is enqueued, so the
// worker never depends on the request body outliving the response.
func (s *Server) HandlerSubmitDocument(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeUnavailable, "task queue unavailable", nil), Render.Status(http.StatusServiceUnavailable))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidUpload, "Invalid multipart form", nil), Render.Status(http.StatusBadRequest))
		return
	}

	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "query is required", nil), Render.Status(http.StatusBadRequest))
		return
	}
	workflowHint := strings.TrimSpace(r.FormValue("workflow"))

	file, header, err := r.FormFile("file")
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "file is required", nil), Render.Status(http.StatusBadRequest))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !schemas.LooksLikePDF(filename) {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "only .pdf files are accepted", nil), Render.Status(http.StatusBadRequest))
		return
	}

	magic := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(file, magic); err != nil || !bytes.Equal(magic, pdfMagic) {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "file is not a PDF", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to read upload", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	taskID := uuid.NewString()
	storedPath := filepath.Join(s.inputDir, fmt.Sprintf("%s_%s", taskID, filename))
	if err := saveUpload(file, storedPath); err != nil {
		s.Base.Logger.Error("failed to persist upload", "error", err, "task_id", taskID)
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to persist upload", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	task := schemas.TaskRequest{
		TaskID:       taskID,
		UserRequest:  query,
		FilePath:     storedPath,
		WorkflowHint: workflowHint,
	}
	if issues := schemas.ValidateTaskRequest(&task); issues != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", issues), Render.Status(http.StatusBadRequest))
		return
	}

	payload, err := json.Marshal(task)
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to encode task", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	if err := s.queue.Enqueue(r.Context(), taskID, payload); err != nil {
		s.Base.Logger.Error("failed to enqueue task", "error", err, "task_id", taskID)
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to enqueue task", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	s.Base.Logger.Info("task accepted", "task_id", taskID, "file", filename, "workflow_hint", workflowHint)
	RenderJSON(w, r, schemas.EnqueueResponse{TaskID: taskID, Status: schemas.TaskPhasePending}, Render.Status(http.StatusAccepted))
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
