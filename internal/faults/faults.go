// Package faults holds the pipeline's error taxonomy.
package faults

import (
	"context"
	"errors"
	"fmt"
)

// Sentinels for every way a capture can fail. Callers match them with
// errors.Is; they usually arrive wrapped in a StageError.
var (
	ErrModelNotReady      = fmt.Errorf("model not ready")
	ErrModelFaulted       = fmt.Errorf("model faulted")
	ErrSourceUnavailable  = fmt.Errorf("frame source unavailable")
	ErrNoFaceDetected     = fmt.Errorf("no face detected")
	ErrInvalidBoundingBox = fmt.Errorf("invalid bounding box")
	ErrDegenerateCrop     = fmt.Errorf("degenerate crop")
	ErrBusy               = fmt.Errorf("classification already in progress")
	ErrWorkerTerminated   = fmt.Errorf("worker terminated")
	ErrEmptyResult        = fmt.Errorf("classifier returned no predictions")
)

// Stage names a step of the capture pipeline.
type Stage string

const (
	StageGate       Stage = "gate"
	StageCapture    Stage = "capture"
	StageLocate     Stage = "locate"
	StagePreprocess Stage = "preprocess"
	StageClassify   Stage = "classify"
)

// StageError records which pipeline stage rejected a call.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WorkerError carries an error message reported by the inference worker.
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string {
	return "worker error: " + e.Message
}

// Describe returns a short human-readable status for a pipeline error.
func Describe(err error) string {
	var workerErr *WorkerError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelNotReady):
		return "model still loading"
	case errors.Is(err, ErrModelFaulted):
		return "model failed to load"
	case errors.Is(err, ErrSourceUnavailable):
		return "camera not available"
	case errors.Is(err, ErrNoFaceDetected):
		return "no face detected"
	case errors.Is(err, ErrInvalidBoundingBox), errors.Is(err, ErrDegenerateCrop):
		return "face is outside the frame"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrWorkerTerminated):
		return "classifier stopped"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.As(err, &workerErr):
		return "classification failed: " + workerErr.Message
	default:
		return err.Error()
	}
}
