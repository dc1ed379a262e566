package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/kozaktomas/emotion-sense/internal/preprocess"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	ready   atomic.Bool
	faulted atomic.Bool
}

func (g *fakeGate) State() lifecycle.State {
	switch {
	case g.faulted.Load():
		return lifecycle.StateFaulted
	case g.ready.Load():
		return lifecycle.StateReady
	}
	return lifecycle.StateDownloading
}

type fakeLocator struct {
	box     preprocess.BoundingBox
	err     error
	block   chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func (l *fakeLocator) Locate(ctx context.Context, _ image.Image) (preprocess.BoundingBox, error) {
	l.calls.Add(1)
	if l.entered != nil {
		l.entered <- struct{}{}
	}
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return preprocess.BoundingBox{}, ctx.Err()
		}
	}
	return l.box, l.err
}

type fakeClassifier struct {
	result emotion.Result
	err    error

	mu      sync.Mutex
	patches []*preprocess.Patch
}

func (c *fakeClassifier) Classify(_ context.Context, patch *preprocess.Patch) (emotion.Result, error) {
	c.mu.Lock()
	c.patches = append(c.patches, patch)
	c.mu.Unlock()
	return c.result, c.err
}

func (c *fakeClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.patches)
}

func testCatalog() *emotion.Catalog {
	return emotion.NewCatalog("❓", map[emotion.Tag]emotion.Display{
		emotion.Happy:   {Icon: "😊", Group: 2},
		emotion.Sad:     {Icon: "😢", Group: 1},
		emotion.Neutral: {Icon: "😐", Group: 3},
	})
}

func frame640() source.FrameSource {
	return source.NewStatic(image.NewNRGBA(image.Rect(0, 0, 640, 480)))
}

type fixture struct {
	gate       *fakeGate
	locator    *fakeLocator
	classifier *fakeClassifier
	o          *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		gate:    &fakeGate{},
		locator: &fakeLocator{box: preprocess.BoundingBox{X: 100, Y: 100, Width: 120, Height: 150}},
		classifier: &fakeClassifier{result: emotion.Result{
			{Label: emotion.Happy, Score: 0.8123},
			{Label: emotion.Sad, Score: 0.1},
		}},
	}
	f.gate.ready.Store(true)
	f.o = New(f.gate, f.locator, f.classifier, testCatalog(), logging.Discard())
	return f
}

func requireStage(t *testing.T, err error, stage faults.Stage, target error) {
	t.Helper()
	var stageErr *faults.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, stage, stageErr.Stage)
	if target != nil {
		require.ErrorIs(t, err, target)
	}
}

func TestCaptureAndClassify_TopPrediction(t *testing.T) {
	f := newFixture()

	out, err := f.o.CaptureAndClassify(context.Background(), frame640())
	require.NoError(t, err)
	assert.Equal(t, emotion.Happy, out.Emotion)
	assert.Equal(t, 0.8123, out.Score)
	assert.Equal(t, "😊", out.Icon)
	assert.Equal(t, 2, out.Group)
	assert.Equal(t, f.locator.box, out.Box)

	require.Equal(t, 1, f.classifier.calls())
	patch := f.classifier.patches[0].Image()
	require.Equal(t, image.Rect(0, 0, 48, 48), patch.Bounds())
	require.False(t, f.o.Busy())
}

func TestCaptureAndClassify_RoundsScore(t *testing.T) {
	f := newFixture()
	f.classifier.result = emotion.Result{{Label: emotion.Tag("contempt"), Score: 0.123456}}

	out, err := f.o.CaptureAndClassify(context.Background(), frame640())
	require.NoError(t, err)
	assert.Equal(t, 0.1235, out.Score)
	assert.Equal(t, emotion.Tag("contempt"), out.Emotion)
	assert.Equal(t, "❓", out.Icon)
	assert.Equal(t, 0, out.Group)
}

func TestCaptureAndClassify_ModelNotReady(t *testing.T) {
	f := newFixture()
	f.gate.ready.Store(false)

	_, err := f.o.CaptureAndClassify(context.Background(), frame640())
	requireStage(t, err, faults.StageGate, faults.ErrModelNotReady)
	require.Zero(t, f.locator.calls.Load())
	require.Zero(t, f.classifier.calls())
}

func TestCaptureAndClassify_ModelFaulted(t *testing.T) {
	f := newFixture()
	f.gate.faulted.Store(true)

	_, err := f.o.CaptureAndClassify(context.Background(), frame640())
	requireStage(t, err, faults.StageGate, faults.ErrModelFaulted)
	require.NotErrorIs(t, err, faults.ErrModelNotReady)
	require.Equal(t, "model failed to load", faults.Describe(err))
	require.Zero(t, f.locator.calls.Load())
}

func TestCaptureAndClassify_SourceUnavailable(t *testing.T) {
	f := newFixture()

	_, err := f.o.CaptureAndClassify(context.Background(), source.NewStatic(nil))
	requireStage(t, err, faults.StageCapture, faults.ErrSourceUnavailable)
	require.Zero(t, f.locator.calls.Load())
}

func TestCaptureAndClassify_NoFace(t *testing.T) {
	f := newFixture()
	f.locator.err = faults.ErrNoFaceDetected

	_, err := f.o.CaptureAndClassify(context.Background(), frame640())
	requireStage(t, err, faults.StageLocate, faults.ErrNoFaceDetected)
	require.Equal(t, "no face detected", faults.Describe(err))
	require.Zero(t, f.classifier.calls())
	require.True(t, f.gate.Ready(), "a missing face must not affect the model")
}

func TestCaptureAndClassify_Boxes(t *testing.T) {
	tests := []struct {
		name   string
		box    preprocess.BoundingBox
		target error
	}{
		{"partially left of frame", preprocess.BoundingBox{X: -10, Y: 5, Width: 100, Height: 100}, nil},
		{"partially right of frame", preprocess.BoundingBox{X: 600, Y: 10, Width: 80, Height: 80}, nil},
		{"zero width", preprocess.BoundingBox{X: 10, Y: 10, Width: 0, Height: 50}, faults.ErrInvalidBoundingBox},
		{"negative height", preprocess.BoundingBox{X: 10, Y: 10, Width: 50, Height: -5}, faults.ErrInvalidBoundingBox},
		{"outside frame", preprocess.BoundingBox{X: 700, Y: 10, Width: 50, Height: 50}, faults.ErrDegenerateCrop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.locator.box = tt.box

			_, err := f.o.CaptureAndClassify(context.Background(), frame640())
			if tt.target == nil {
				require.NoError(t, err)
				require.Equal(t, 1, f.classifier.calls())
				return
			}
			requireStage(t, err, faults.StagePreprocess, tt.target)
			require.Zero(t, f.classifier.calls(), "invalid crops must never reach the classifier")
		})
	}
}

func TestCaptureAndClassify_WorkerError(t *testing.T) {
	f := newFixture()
	f.classifier.err = &faults.WorkerError{Message: "OOM"}

	_, err := f.o.CaptureAndClassify(context.Background(), frame640())
	requireStage(t, err, faults.StageClassify, nil)
	var workerErr *faults.WorkerError
	require.ErrorAs(t, err, &workerErr)
	require.Equal(t, "OOM", workerErr.Message)
}

func TestCaptureAndClassify_EmptyResult(t *testing.T) {
	f := newFixture()
	f.classifier.result = nil

	_, err := f.o.CaptureAndClassify(context.Background(), frame640())
	requireStage(t, err, faults.StageClassify, faults.ErrEmptyResult)
}

func TestCaptureAndClassify_Busy(t *testing.T) {
	f := newFixture()
	f.locator.block = make(chan struct{})
	f.locator.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.o.CaptureAndClassify(context.Background(), frame640())
		done <- err
	}()

	select {
	case <-f.locator.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first call did not reach the locator")
	}
	require.True(t, f.o.Busy())

	_, err := f.o.CaptureAndClassify(context.Background(), frame640())
	requireStage(t, err, faults.StageGate, faults.ErrBusy)

	close(f.locator.block)
	require.NoError(t, <-done)
	require.False(t, f.o.Busy())

	// The permit is released after completion.
	f.locator.entered = nil
	_, err = f.o.CaptureAndClassify(context.Background(), frame640())
	require.NoError(t, err)
}

func TestCaptureAndClassify_ContextCancelled(t *testing.T) {
	f := newFixture()
	f.locator.block = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.o.CaptureAndClassify(ctx, frame640())
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.False(t, f.o.Busy())
}
