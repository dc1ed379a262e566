// Package facedetect finds the face to classify in a frame.
package facedetect

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/preprocess"
)

// Detection is one face reported by a detector.
type Detection struct {
	Box        preprocess.BoundingBox
	Confidence float64
}

// Detector runs a face detection model on a frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)
}

// Locator returns the single face the pipeline should classify.
type Locator interface {
	Locate(ctx context.Context, frame image.Image) (preprocess.BoundingBox, error)
}

// SelectBest picks the best face from multiple detections.
// Priority: confidence*0.7 + (area/maxArea)*0.3; the earliest detection wins ties.
func SelectBest(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	if len(dets) == 1 {
		return dets[0], true
	}

	maxArea := 0.0
	for _, d := range dets {
		maxArea = max(maxArea, d.Box.Area())
	}

	bestScore := -1.0
	best := 0
	for i, d := range dets {
		score := d.Confidence * constants.SelectConfidenceWeight
		if maxArea > 0 {
			score += d.Box.Area() / maxArea * constants.SelectAreaWeight
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return dets[best], true
}

type locator struct {
	detector      Detector
	minConfidence float64
}

// NewLocator wraps a detector, discarding detections below minConfidence.
func NewLocator(detector Detector, minConfidence float64) Locator {
	return &locator{detector: detector, minConfidence: minConfidence}
}

func (l *locator) Locate(ctx context.Context, frame image.Image) (preprocess.BoundingBox, error) {
	dets, err := l.detector.Detect(ctx, frame)
	if err != nil {
		return preprocess.BoundingBox{}, fmt.Errorf("face detection failed: %w", err)
	}

	var kept []Detection
	for _, d := range dets {
		if d.Confidence >= l.minConfidence {
			kept = append(kept, d)
		}
	}

	best, ok := SelectBest(kept)
	if !ok {
		return preprocess.BoundingBox{}, faults.ErrNoFaceDetected
	}
	return best.Box, nil
}
