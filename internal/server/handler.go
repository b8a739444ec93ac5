// Package server exposes the task list over a small HTTP API and runs the
// background refresh worker.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ntodo/ntodo/internal/apperrors"
	"github.com/ntodo/ntodo/internal/notion"
	"github.com/ntodo/ntodo/internal/tasks"
	"github.com/ntodo/ntodo/internal/todo"
	"github.com/ntodo/ntodo/internal/version"
)

// Handler handles task API requests.
type Handler struct {
	service *tasks.Service
	worker  *Worker
	logger  *slog.Logger
}

// NewHandler creates a new task API handler.
func NewHandler(service *tasks.Service, worker *Worker, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		worker:  worker,
		logger:  logger,
	}
}

// taskRequest is the create/update request body.
type taskRequest struct {
	Summary     *string `json:"summary,omitempty"`
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
	// Due is an ISO date ("2006-01-02") or RFC 3339 timestamp.
	Due *string `json:"due,omitempty"`
}

// deleteRequest is the bulk delete request body.
type deleteRequest struct {
	UIDs []string `json:"uids"`
}

// HandleListTasks returns the last poll snapshot. Before the first
// successful poll the list is unknown, which is distinct from empty.
func (h *Handler) HandleListTasks(writer http.ResponseWriter, req *http.Request) {
	items, err := h.service.Items()
	if err != nil {
		if errors.Is(err, apperrors.ErrNotPolled) {
			writeError(writer, http.StatusServiceUnavailable, err)
			return
		}
		writeError(writer, httpStatusFor(err), err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]any{"tasks": items})
}

// HandleCreateTask creates a new task.
func (h *Handler) HandleCreateTask(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body taskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(writer, http.StatusBadRequest, err)
		return
	}

	summary := ""
	if body.Summary != nil {
		summary = *body.Summary
	}

	status := todo.StatusNeedsAction
	if body.Status != nil {
		parsed, err := parseStatus(*body.Status)
		if err != nil {
			writeError(writer, http.StatusBadRequest, err)
			return
		}
		status = parsed
	}

	if err := h.service.Create(ctx, summary, status); err != nil {
		h.logger.ErrorContext(ctx, "create task failed", "error", err)
		writeError(writer, httpStatusFor(err), err)
		return
	}

	writeJSON(writer, http.StatusCreated, map[string]any{"status": "created"})
}

// HandleUpdateTask applies a partial update to one task.
func (h *Handler) HandleUpdateTask(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	uid := req.PathValue("uid")

	var body taskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(writer, http.StatusBadRequest, err)
		return
	}

	patch := tasks.ItemPatch{
		Summary:     body.Summary,
		Description: body.Description,
	}

	if body.Status != nil {
		status, err := parseStatus(*body.Status)
		if err != nil {
			writeError(writer, http.StatusBadRequest, err)
			return
		}
		patch.Status = &status
	}

	if body.Due != nil {
		due, dateOnly, err := parseDue(*body.Due)
		if err != nil {
			writeError(writer, http.StatusBadRequest, err)
			return
		}
		patch.Due = &due
		patch.DueDateOnly = dateOnly
	}

	if err := h.service.Update(ctx, uid, patch); err != nil {
		h.logger.ErrorContext(ctx, "update task failed", "uid", uid, "error", err)
		writeError(writer, httpStatusFor(err), err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]any{"status": "updated"})
}

// HandleDeleteTasks deletes a set of tasks. All ids are attempted; a
// partial failure reports as a whole-operation failure.
func (h *Handler) HandleDeleteTasks(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body deleteRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(writer, http.StatusBadRequest, err)
		return
	}

	if len(body.UIDs) == 0 {
		writeError(writer, http.StatusBadRequest, apperrors.ErrTaskUIDRequired)
		return
	}

	if err := h.service.Delete(ctx, body.UIDs); err != nil {
		h.logger.ErrorContext(ctx, "delete tasks failed", "error", err)
		writeError(writer, httpStatusFor(err), err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]any{"status": "deleted"})
}

// HandleRefresh triggers a background refresh without waiting for it.
func (h *Handler) HandleRefresh(writer http.ResponseWriter, _ *http.Request) {
	h.worker.Notify()
	writeJSON(writer, http.StatusAccepted, map[string]any{"status": "refresh scheduled"})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]any{"status": "ok"})
}

// HandleVersion reports build information.
func (h *Handler) HandleVersion(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]any{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_time": version.GitTime,
	})
}

// parseStatus parses a host status string.
func parseStatus(value string) (todo.Status, error) {
	switch todo.Status(value) {
	case todo.StatusNeedsAction:
		return todo.StatusNeedsAction, nil
	case todo.StatusCompleted:
		return todo.StatusCompleted, nil
	default:
		return "", errors.New("status must be needs_action or completed")
	}
}

// parseDue parses a due value: a 10-character value is a plain date,
// anything longer a full timestamp, mirroring the wire format.
func parseDue(value string) (time.Time, bool, error) {
	if len(value) > len(notion.DateFormat) {
		t, err := time.Parse(time.RFC3339, value)
		return t, false, err
	}
	t, err := time.Parse(notion.DateFormat, value)
	return t, true, err
}

// httpStatusFor maps the error taxonomy onto response codes: credential
// errors and connectivity errors are upstream failures, everything else an
// internal one unless it is a caller mistake.
func httpStatusFor(err error) int {
	switch {
	case apperrors.IsAuthentication(err):
		return http.StatusBadGateway
	case apperrors.IsCommunication(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrSummaryRequired),
		errors.Is(err, apperrors.ErrTaskUIDRequired),
		errors.Is(err, apperrors.ErrEmptyUpdate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response body.
func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// writeError writes a JSON error body.
func writeError(writer http.ResponseWriter, status int, err error) {
	writeJSON(writer, status, map[string]any{"error": err.Error()})
}
