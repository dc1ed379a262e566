package handlers

import (
	"net/http"

	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
)

// MonitorState is the read side of the continuous monitor.
type MonitorState interface {
	Latest() (pipeline.Reading, bool)
	Dominant() (emotion.Tag, int, bool)
}

// MonitorHandler reports the monitor's latest and dominant emotion.
type MonitorHandler struct {
	monitor MonitorState
	catalog *emotion.Catalog
}

// NewMonitorHandler creates a handler reporting the monitor's readings.
func NewMonitorHandler(monitor MonitorState, catalog *emotion.Catalog) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, catalog: catalog}
}

type monitorResponse struct {
	Latest       *pipeline.Reading `json:"latest"`
	Dominant     emotion.Tag       `json:"dominant,omitempty"`
	DominantIcon string            `json:"dominant_icon,omitempty"`
	Count        int               `json:"count"`
}

func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	var resp monitorResponse
	if latest, ok := h.monitor.Latest(); ok {
		resp.Latest = &latest
	}
	if tag, count, ok := h.monitor.Dominant(); ok {
		resp.Dominant = tag
		resp.DominantIcon = h.catalog.Icon(tag)
		resp.Count = count
	}
	respondJSON(w, http.StatusOK, resp)
}
