// Package pipeline composes capture, face location, preprocessing and
// classification into a single call.
package pipeline

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/facedetect"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
	"github.com/kozaktomas/emotion-sense/internal/preprocess"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/sirupsen/logrus"
)

// Gate reports the model lifecycle state.
type Gate interface {
	State() lifecycle.State
}

// Classifier turns a normalized patch into ranked predictions.
type Classifier interface {
	Classify(ctx context.Context, patch *preprocess.Patch) (emotion.Result, error)
}

// Outcome is the top prediction for one captured frame.
type Outcome struct {
	Emotion emotion.Tag            `json:"emotion"`
	Score   float64                `json:"score"`
	Icon    string                 `json:"icon"`
	Group   int                    `json:"group"`
	Box     preprocess.BoundingBox `json:"box"`
}

// Orchestrator runs one capture at a time.
type Orchestrator struct {
	gate       Gate
	locator    facedetect.Locator
	classifier Classifier
	catalog    *emotion.Catalog
	log        *logrus.Logger

	permit chan struct{}
	busy   atomic.Bool
}

// New creates an orchestrator. The gate is consulted before every capture.
func New(gate Gate, locator facedetect.Locator, classifier Classifier, catalog *emotion.Catalog, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		gate:       gate,
		locator:    locator,
		classifier: classifier,
		catalog:    catalog,
		log:        log,
		permit:     make(chan struct{}, 1),
	}
}

// Busy reports whether a capture is in progress.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// CaptureAndClassify grabs the current frame from src and classifies the
// face in it. Every failure is a *faults.StageError. A call made while
// another is running fails with ErrBusy, a faulted model with
// ErrModelFaulted.
func (o *Orchestrator) CaptureAndClassify(ctx context.Context, src source.FrameSource) (Outcome, error) {
	select {
	case o.permit <- struct{}{}:
	default:
		return Outcome{}, &faults.StageError{Stage: faults.StageGate, Err: faults.ErrBusy}
	}
	o.busy.Store(true)
	defer func() {
		o.busy.Store(false)
		<-o.permit
	}()

	switch o.gate.State() {
	case lifecycle.StateReady:
	case lifecycle.StateFaulted:
		return Outcome{}, &faults.StageError{Stage: faults.StageGate, Err: faults.ErrModelFaulted}
	default:
		return Outcome{}, &faults.StageError{Stage: faults.StageGate, Err: faults.ErrModelNotReady}
	}

	frame, err := src.Frame(ctx)
	if err != nil {
		return Outcome{}, o.fail(faults.StageCapture, err)
	}
	return o.classifyFrame(ctx, frame)
}

func (o *Orchestrator) classifyFrame(ctx context.Context, frame image.Image) (Outcome, error) {
	start := time.Now()

	box, err := o.locator.Locate(ctx, frame)
	if err != nil {
		return Outcome{}, o.fail(faults.StageLocate, err)
	}

	patch, err := preprocess.Normalize(frame, box)
	if err != nil {
		return Outcome{}, o.fail(faults.StagePreprocess, err)
	}

	result, err := o.classifier.Classify(ctx, patch)
	if err != nil {
		return Outcome{}, o.fail(faults.StageClassify, err)
	}
	top, ok := result.Top()
	if !ok {
		return Outcome{}, o.fail(faults.StageClassify, faults.ErrEmptyResult)
	}

	out := Outcome{
		Emotion: top.Label,
		Score:   emotion.RoundScore(top.Score, constants.ScorePrecision),
		Icon:    o.catalog.Icon(top.Label),
		Group:   o.catalog.Group(top.Label),
		Box:     box,
	}
	o.log.WithFields(logrus.Fields{
		"emotion":  out.Emotion,
		"score":    out.Score,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("[Pipeline] frame classified")
	return out, nil
}

func (o *Orchestrator) fail(stage faults.Stage, err error) error {
	o.log.WithFields(logrus.Fields{
		"stage": stage,
		"error": err,
	}).Debug("[Pipeline] capture rejected")
	return &faults.StageError{Stage: stage, Err: err}
}
