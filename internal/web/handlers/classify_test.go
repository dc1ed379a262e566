package handlers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/source"
)

type fakeCapturer struct {
	out      pipeline.Outcome
	err      error
	frame    image.Image
	deadline bool
}

func (c *fakeCapturer) CaptureAndClassify(ctx context.Context, src source.FrameSource) (pipeline.Outcome, error) {
	_, c.deadline = ctx.Deadline()
	frame, err := src.Frame(ctx)
	if err != nil {
		return pipeline.Outcome{}, &faults.StageError{Stage: faults.StageCapture, Err: err}
	}
	c.frame = frame
	return c.out, c.err
}

func happyOutcome() pipeline.Outcome {
	return pipeline.Outcome{Emotion: emotion.Happy, Score: 0.8123, Icon: "😊", Group: 2}
}

func TestClassifyHandler_Capture(t *testing.T) {
	capturer := &fakeCapturer{out: happyOutcome()}
	src := source.NewStatic(image.NewRGBA(image.Rect(0, 0, 640, 480)))
	handler := NewClassifyHandler(capturer, src, time.Minute, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Capture(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/classify", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result pipeline.Outcome
	parseJSONResponse(t, recorder, &result)
	if result.Emotion != emotion.Happy || result.Score != 0.8123 || result.Icon != "😊" {
		t.Errorf("unexpected outcome %+v", result)
	}
	if !capturer.deadline {
		t.Error("expected the capture to run with a deadline")
	}
}

func TestClassifyHandler_CaptureWithoutSource(t *testing.T) {
	handler := NewClassifyHandler(&fakeCapturer{}, nil, 0, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Capture(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/classify", nil))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "no frame source configured")
}

func TestClassifyHandler_CaptureErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not ready", &faults.StageError{Stage: faults.StageGate, Err: faults.ErrModelNotReady}, http.StatusServiceUnavailable, "model still loading"},
		{"busy", &faults.StageError{Stage: faults.StageGate, Err: faults.ErrBusy}, http.StatusConflict, "busy"},
		{"no face", &faults.StageError{Stage: faults.StageLocate, Err: faults.ErrNoFaceDetected}, http.StatusUnprocessableEntity, "no face detected"},
		{"worker", &faults.StageError{Stage: faults.StageClassify, Err: &faults.WorkerError{Message: "OOM"}}, http.StatusBadGateway, "classification failed: OOM"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := source.NewStatic(image.NewRGBA(image.Rect(0, 0, 10, 10)))
			handler := NewClassifyHandler(&fakeCapturer{err: tc.err}, src, 0, logging.Discard())

			recorder := httptest.NewRecorder()
			handler.Capture(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/classify", nil))

			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.message)
		})
	}
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if data != nil {
		part, err := writer.CreateFormFile(field, "frame.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(data)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestClassifyHandler_Upload(t *testing.T) {
	var png1 bytes.Buffer
	if err := png.Encode(&png1, image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatal(err)
	}

	capturer := &fakeCapturer{out: happyOutcome()}
	handler := NewClassifyHandler(capturer, nil, 0, logging.Discard())

	body, contentType := multipartImage(t, "image", png1.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/image", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()

	handler.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if capturer.frame == nil || capturer.frame.Bounds().Dx() != 64 {
		t.Errorf("expected the uploaded 64x48 frame to be classified, got %v", capturer.frame)
	}
}

func TestClassifyHandler_UploadRejects(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		data    []byte
		message string
	}{
		{"missing image", "image", nil, "image is required"},
		{"wrong field", "file", []byte("x"), "image is required"},
		{"not an image", "image", []byte("definitely not a png"), "unsupported or empty image"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewClassifyHandler(&fakeCapturer{}, nil, 0, logging.Discard())

			body, contentType := multipartImage(t, tc.field, tc.data)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/image", body)
			req.Header.Set("Content-Type", contentType)
			recorder := httptest.NewRecorder()

			handler.Upload(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.message)
		})
	}
}

func TestClassifyHandler_UploadNotMultipart(t *testing.T) {
	handler := NewClassifyHandler(&fakeCapturer{}, nil, 0, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.Upload(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/classify/image", bytes.NewReader([]byte("{}"))))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "failed to parse multipart form")
}
