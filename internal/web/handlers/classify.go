package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/sirupsen/logrus"
)

// ClassifyHandler runs the capture pipeline on demand.
type ClassifyHandler struct {
	capturer pipeline.Capturer
	source   source.FrameSource
	timeout  time.Duration
	log      *logrus.Logger
}

// NewClassifyHandler creates a handler. src may be nil, in which case only
// uploaded frames can be classified.
func NewClassifyHandler(capturer pipeline.Capturer, src source.FrameSource, timeout time.Duration, log *logrus.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		capturer: capturer,
		source:   src,
		timeout:  timeout,
		log:      log,
	}
}

// Capture classifies the current frame of the configured source.
func (h *ClassifyHandler) Capture(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		respondError(w, http.StatusNotFound, "no frame source configured")
		return
	}
	h.run(w, r, h.source)
}

// Upload classifies a frame sent as the "image" field of a multipart form.
func (h *ClassifyHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	frame, err := source.Decode(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unsupported or empty image")
		return
	}

	h.run(w, r, source.NewStatic(frame))
}

func (h *ClassifyHandler) run(w http.ResponseWriter, r *http.Request, src source.FrameSource) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out, err := h.capturer.CaptureAndClassify(ctx, src)
	if err != nil {
		h.log.WithError(err).Debug("[Web] classification rejected")
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
