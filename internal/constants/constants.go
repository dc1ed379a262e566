// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Preprocessing constants
const (
	// CanonicalSize is the width and height of every patch sent to the classifier.
	// The emotion model was trained on 48x48 faces.
	CanonicalSize = 48

	// DefaultFrameWidth is used when a capture device does not report its geometry
	DefaultFrameWidth = 640

	// DefaultFrameHeight is used when a capture device does not report its geometry
	DefaultFrameHeight = 480
)

// Face detection constants
const (
	// MinFaceConfidence is the lowest detector score accepted as a face.
	// Kept low so partially visible or turned faces are still found.
	MinFaceConfidence = 0.2

	// SelectConfidenceWeight is the share of the confidence in the multi-face score
	SelectConfidenceWeight = 0.7

	// SelectAreaWeight is the share of the relative box area in the multi-face score
	SelectAreaWeight = 0.3

	// MaxDetectImageSize is the largest frame dimension uploaded to the face service
	MaxDetectImageSize = 1280

	// DetectorWarmupPoll is the interval between face service health probes on first use
	DetectorWarmupPoll = 250 * time.Millisecond
)

// Classification constants
const (
	// ScorePrecision is the number of decimal places reported for a score
	ScorePrecision = 4

	// MonitorInterval is the delay between captures in continuous mode
	MonitorInterval = 2 * time.Second

	// CaptureTimeout bounds one monitor capture so a stuck detector or worker
	// fails the tick instead of holding the pipeline
	CaptureTimeout = 15 * time.Second

	// ModelStatusPollInterval is how often a remote model is polled while loading
	ModelStatusPollInterval = 500 * time.Millisecond
)
