package handlers

import (
	"net/http"

	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
)

// ModelStatus is the part of the lifecycle manager the status endpoints read.
type ModelStatus interface {
	Snapshot() lifecycle.Status
	AddListener() chan lifecycle.Event
	RemoveListener(ch chan lifecycle.Event)
}

// StatusHandler exposes model readiness and download progress.
type StatusHandler struct {
	model ModelStatus
}

// NewStatusHandler creates a handler reading model.
func NewStatusHandler(model ModelStatus) *StatusHandler {
	return &StatusHandler{model: model}
}

// Get returns the current lifecycle status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.model.Snapshot())
}

// Events streams lifecycle events as server-sent events until the client
// disconnects or the manager closes.
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := h.model.AddListener()
	defer h.model.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", h.model.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
