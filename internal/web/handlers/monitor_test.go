package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
)

type fakeMonitor struct {
	latest   *pipeline.Reading
	dominant emotion.Tag
	count    int
}

func (m *fakeMonitor) Latest() (pipeline.Reading, bool) {
	if m.latest == nil {
		return pipeline.Reading{}, false
	}
	return *m.latest, true
}

func (m *fakeMonitor) Dominant() (emotion.Tag, int, bool) {
	return m.dominant, m.count, m.count > 0
}

func TestMonitorHandler_Empty(t *testing.T) {
	handler := NewMonitorHandler(&fakeMonitor{}, emotion.NewCatalog("❓", nil))

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/monitor", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["latest"] != nil {
		t.Errorf("expected null latest, got %v", result["latest"])
	}
	if result["count"] != float64(0) {
		t.Errorf("expected count 0, got %v", result["count"])
	}
}

func TestMonitorHandler_Reading(t *testing.T) {
	catalog := emotion.NewCatalog("❓", map[emotion.Tag]emotion.Display{emotion.Sad: {Icon: "😢", Group: 1}})
	monitor := &fakeMonitor{
		latest:   &pipeline.Reading{Time: time.Now(), Emotion: emotion.Sad, Score: 0.7},
		dominant: emotion.Sad,
		count:    3,
	}
	handler := NewMonitorHandler(monitor, catalog)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/monitor", nil))

	var result monitorResponse
	parseJSONResponse(t, recorder, &result)
	if result.Latest == nil || result.Latest.Emotion != emotion.Sad {
		t.Errorf("unexpected latest %+v", result.Latest)
	}
	if result.Dominant != emotion.Sad || result.DominantIcon != "😢" || result.Count != 3 {
		t.Errorf("unexpected dominant %+v", result)
	}
}
