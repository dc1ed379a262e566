package web

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/config"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/source"
)

type stubModel struct {
	lifecycle.EventBroadcaster
}

func (m *stubModel) Snapshot() lifecycle.Status {
	return lifecycle.Status{State: lifecycle.StateReady, Ready: true}
}

func (m *stubModel) Initialize(context.Context) error {
	return nil
}

type stubCapturer struct {
	err error
}

func (c *stubCapturer) CaptureAndClassify(context.Context, source.FrameSource) (pipeline.Outcome, error) {
	if c.err != nil {
		return pipeline.Outcome{}, c.err
	}
	return pipeline.Outcome{Emotion: emotion.Surprise, Score: 0.66, Icon: "😮", Group: 2}, nil
}

func testServer(capturer pipeline.Capturer, monitor *pipeline.Monitor) *Server {
	cfg := &config.Config{
		Worker: config.WorkerConfig{Timeout: time.Minute},
		Web:    config.WebConfig{Host: "127.0.0.1", Port: 0},
	}
	return NewServer(cfg, Dependencies{
		Model:    &stubModel{},
		Capturer: capturer,
		Source:   source.NewStatic(image.NewRGBA(image.Rect(0, 0, 64, 64))),
		Monitor:  monitor,
		Catalog:  emotion.NewCatalog("❓", nil),
		Log:      logging.Discard(),
	})
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(method, path, nil))
	return recorder
}

func TestRoutes(t *testing.T) {
	s := testServer(&stubCapturer{}, nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/status", http.StatusOK},
		{http.MethodPost, "/api/v1/model/init", http.StatusOK},
		{http.MethodPost, "/api/v1/classify", http.StatusOK},
		{http.MethodGet, "/api/v1/classify", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/monitor", http.StatusNotFound},
		{http.MethodGet, "/ws/emotions", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := serve(s, tc.method, tc.path)
			if recorder.Code != tc.status {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.status, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestClassifyRoute(t *testing.T) {
	s := testServer(&stubCapturer{}, nil)

	recorder := serve(s, http.MethodPost, "/api/v1/classify")

	var out pipeline.Outcome
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.Emotion != emotion.Surprise || out.Score != 0.66 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on API responses")
	}
}

func TestClassifyRoute_Busy(t *testing.T) {
	s := testServer(&stubCapturer{err: &faults.StageError{Stage: faults.StageGate, Err: faults.ErrBusy}}, nil)

	recorder := serve(s, http.MethodPost, "/api/v1/classify")
	if recorder.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", recorder.Code)
	}
}

func TestMonitorRoutes(t *testing.T) {
	monitor := pipeline.NewMonitor(&stubCapturer{}, source.NewStatic(nil), emotion.NewCatalog("❓", nil), time.Second, 0, logging.Discard())
	s := testServer(&stubCapturer{}, monitor)

	recorder := serve(s, http.MethodGet, "/api/v1/monitor")
	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", recorder.Code)
	}

	// A plain GET without upgrade headers is rejected by the upgrader.
	recorder = serve(s, http.MethodGet, "/ws/emotions")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for non-websocket request, got %d", recorder.Code)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	s := testServer(&stubCapturer{}, nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestStartShutdown_WithMonitor(t *testing.T) {
	monitor := pipeline.NewMonitor(&stubCapturer{}, source.NewStatic(nil), emotion.NewCatalog("❓", nil), time.Second, 0, logging.Discard())
	s := testServer(&stubCapturer{}, monitor)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
