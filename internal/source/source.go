// Package source provides camera frames to the capture pipeline.
package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/config"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// FrameSource yields the current camera frame.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

// Decode decodes an encoded frame. Empty input and zero-sized images count
// as an unavailable source.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", faults.ErrSourceUnavailable)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode frame: %v", faults.ErrSourceUnavailable, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty frame", faults.ErrSourceUnavailable)
	}
	return img, nil
}

// Static always returns the same frame.
type Static struct {
	img image.Image
}

// NewStatic wraps an already decoded frame.
func NewStatic(img image.Image) *Static {
	return &Static{img: img}
}

func (s *Static) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.img == nil || s.img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty frame", faults.ErrSourceUnavailable)
	}
	return s.img, nil
}

// FileSource re-reads an image file on every frame, so a file that is
// replaced on disk acts as a slow camera.
type FileSource struct {
	path string
}

// NewFile creates a source that re-reads path on every frame.
func NewFile(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrSourceUnavailable, err)
	}
	return Decode(data)
}

// FromConfig builds the frame source selected by cfg.
func FromConfig(cfg config.SourceConfig, timeout time.Duration, log *logrus.Logger) (FrameSource, error) {
	switch cfg.Kind {
	case config.SourceFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("SOURCE_PATH is required for the %s source", cfg.Kind)
		}
		return NewFile(cfg.Path), nil
	case config.SourceSnapshot:
		if cfg.URL == "" {
			return nil, fmt.Errorf("SOURCE_URL is required for the %s source", cfg.Kind)
		}
		return NewSnapshot(cfg.URL, timeout), nil
	case config.SourceFFmpeg:
		return NewFFmpeg(cfg.Device, cfg.Width, cfg.Height, log), nil
	default:
		return nil, fmt.Errorf("unknown frame source %q", cfg.Kind)
	}
}
