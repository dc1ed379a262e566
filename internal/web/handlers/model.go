package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
	"github.com/sirupsen/logrus"
)

// ModelLoader can (re)start the model, e.g. to recover from a fault.
type ModelLoader interface {
	ModelStatus
	Initialize(ctx context.Context) error
}

// ModelHandler triggers model loading.
type ModelHandler struct {
	model ModelLoader
	ctx   context.Context // outlives requests, a load is not tied to the caller
	log   *logrus.Logger
}

// NewModelHandler creates a handler. Loads it starts run until they settle
// or ctx is done.
func NewModelHandler(ctx context.Context, model ModelLoader, log *logrus.Logger) *ModelHandler {
	return &ModelHandler{model: model, ctx: ctx, log: log}
}

// Init starts loading the model unless it is already loading or ready.
// With ?wait=true it blocks until the load settles (or the client leaves)
// and answers 200 or the fault; otherwise it answers 202 once loading has
// started. Progress is available from /status/events.
func (h *ModelHandler) Init(w http.ResponseWriter, r *http.Request) {
	switch snapshot := h.model.Snapshot(); snapshot.State {
	case lifecycle.StateReady:
		respondJSON(w, http.StatusOK, snapshot)
		return
	case lifecycle.StateDownloading:
		respondJSON(w, http.StatusAccepted, snapshot)
		return
	}

	events := h.model.AddListener()
	defer h.model.RemoveListener(events)

	done := make(chan error, 1)
	go func() {
		err := h.model.Initialize(h.ctx)
		if err != nil {
			h.log.WithError(err).Warn("[Model] load failed")
		}
		done <- err
	}()

	if r.URL.Query().Get("wait") != "true" {
		select {
		case err := <-done:
			h.respondSettled(w, err)
		case <-events:
			respondJSON(w, http.StatusAccepted, h.model.Snapshot())
		case <-r.Context().Done():
		}
		return
	}

	select {
	case err := <-done:
		h.respondSettled(w, err)
	case <-r.Context().Done():
	}
}

func (h *ModelHandler) respondSettled(w http.ResponseWriter, err error) {
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.model.Snapshot())
}
