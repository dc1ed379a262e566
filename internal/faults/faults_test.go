package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestStageError_Unwrap(t *testing.T) {
	err := error(&StageError{Stage: StageLocate, Err: ErrNoFaceDetected})

	if !errors.Is(err, ErrNoFaceDetected) {
		t.Error("expected StageError to unwrap to ErrNoFaceDetected")
	}
	if err.Error() != "locate: no face detected" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStageError_WorkerError(t *testing.T) {
	err := fmt.Errorf("capture: %w", &StageError{Stage: StageClassify, Err: &WorkerError{Message: "OOM"}})

	var workerErr *WorkerError
	if !errors.As(err, &workerErr) {
		t.Fatal("expected errors.As to find WorkerError")
	}
	if workerErr.Message != "OOM" {
		t.Errorf("expected OOM, got %q", workerErr.Message)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{ErrModelNotReady, "model still loading"},
		{&StageError{Stage: StageGate, Err: ErrModelFaulted}, "model failed to load"},
		{&StageError{Stage: StageClassify, Err: fmt.Errorf("classification aborted: %w", context.DeadlineExceeded)}, "timed out"},
		{&StageError{Stage: StageLocate, Err: ErrNoFaceDetected}, "no face detected"},
		{fmt.Errorf("wrap: %w", ErrDegenerateCrop), "face is outside the frame"},
		{&WorkerError{Message: "OOM"}, "classification failed: OOM"},
		{errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.expected {
			t.Errorf("Describe(%v) = %q, expected %q", tt.err, got, tt.expected)
		}
	}
}
