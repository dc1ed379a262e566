package facedetect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/modelapi"
	"github.com/kozaktomas/emotion-sense/internal/preprocess"
	"golang.org/x/image/draw"
)

// HTTPDetector detects faces with the inference server's /detect/face endpoint.
// The first call waits until the server reports healthy.
type HTTPDetector struct {
	client  *modelapi.Client
	maxSize int
	poll    time.Duration

	mu     sync.Mutex
	warmed bool
}

// NewHTTPDetector creates a detector backed by the inference server.
func NewHTTPDetector(client *modelapi.Client) *HTTPDetector {
	return &HTTPDetector{
		client:  client,
		maxSize: constants.MaxDetectImageSize,
		poll:    constants.DetectorWarmupPoll,
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	if err := d.warmUp(ctx); err != nil {
		return nil, err
	}

	data, scale, err := encodeFrame(frame, d.maxSize)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.DetectFaces(ctx, data)
	if err != nil {
		return nil, err
	}

	dets := make([]Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			continue
		}
		box := preprocess.BoxFromCorners(f.BBox)
		dets = append(dets, Detection{
			Box: preprocess.BoundingBox{
				X:      box.X / scale,
				Y:      box.Y / scale,
				Width:  box.Width / scale,
				Height: box.Height / scale,
			},
			Confidence: f.DetScore,
		})
	}
	return dets, nil
}

// warmUp blocks until the face service is healthy. A cancelled wait is retried on the next call.
func (d *HTTPDetector) warmUp(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.warmed {
		return nil
	}

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		if err := d.client.Health(ctx); err == nil {
			d.warmed = true
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("face service not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// encodeFrame downsizes the frame to fit within maxSize and encodes it as JPEG.
// scale is the factor applied to the frame, so detected coordinates divide by it.
func encodeFrame(img image.Image, maxSize int) ([]byte, float64, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	scale := 1.0
	src := img
	if width > maxSize || height > maxSize {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxSize
			newHeight = int(float64(height) * float64(maxSize) / float64(width))
		} else {
			newHeight = maxSize
			newWidth = int(float64(width) * float64(maxSize) / float64(height))
		}
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		src = resized
		scale = float64(newWidth) / float64(width)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		return nil, 0, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), scale, nil
}
