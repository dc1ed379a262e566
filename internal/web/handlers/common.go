package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/emotion-sense/internal/faults"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFault sends a pipeline error with its stage and a short description.
func respondFault(w http.ResponseWriter, err error) {
	body := map[string]string{"error": faults.Describe(err)}
	var stageErr *faults.StageError
	if errors.As(err, &stageErr) {
		body["stage"] = string(stageErr.Stage)
	}
	respondJSON(w, statusForError(err), body)
}

// statusForError maps pipeline errors to HTTP status codes.
func statusForError(err error) int {
	var workerErr *faults.WorkerError
	switch {
	case errors.Is(err, faults.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, faults.ErrModelNotReady),
		errors.Is(err, faults.ErrModelFaulted),
		errors.Is(err, faults.ErrWorkerTerminated),
		errors.Is(err, faults.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, faults.ErrNoFaceDetected),
		errors.Is(err, faults.ErrInvalidBoundingBox),
		errors.Is(err, faults.ErrDegenerateCrop):
		return http.StatusUnprocessableEntity
	case errors.As(err, &workerErr), errors.Is(err, faults.ErrEmptyResult):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
