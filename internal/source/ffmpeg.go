package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/sirupsen/logrus"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// maxJPEGFrame bounds the scanner buffer for a single MJPEG frame.
const maxJPEGFrame = 16 << 20

// FFmpegSource grabs one frame per call from a camera device through ffmpeg.
type FFmpegSource struct {
	binary string
	device string
	width  int
	height int
	log    *logrus.Logger
}

// NewFFmpeg creates a source reading device through the ffmpeg binary.
// Zero dimensions fall back to the default frame geometry.
func NewFFmpeg(device string, width, height int, log *logrus.Logger) *FFmpegSource {
	if width <= 0 || height <= 0 {
		width, height = constants.DefaultFrameWidth, constants.DefaultFrameHeight
	}
	return &FFmpegSource{
		binary: "ffmpeg",
		device: device,
		width:  width,
		height: height,
		log:    log,
	}
}

// args builds the ffmpeg command line for a single MJPEG frame on stdout.
func (s *FFmpegSource) args() []string {
	var input []string
	switch {
	case strings.HasPrefix(s.device, "rtsp://"):
		input = []string{"-rtsp_transport", "tcp", "-i", s.device}
	case strings.HasPrefix(s.device, "http://"), strings.HasPrefix(s.device, "https://"):
		input = []string{"-i", s.device}
	default:
		input = []string{
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", s.width, s.height),
			"-i", s.device,
		}
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	return append(args, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")
}

func (s *FFmpegSource) Frame(ctx context.Context) (image.Image, error) {
	cmd := exec.CommandContext(ctx, s.binary, s.args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", faults.ErrSourceUnavailable, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1<<20), maxJPEGFrame)
	scanner.Split(splitJPEG)

	var frame []byte
	if scanner.Scan() {
		frame = bytes.Clone(scanner.Bytes())
	}
	scanErr := scanner.Err()

	// Drain whatever ffmpeg still writes so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if scanErr != nil {
		return nil, fmt.Errorf("%w: failed to read frame: %v", faults.ErrSourceUnavailable, scanErr)
	}
	if frame == nil {
		msg := strings.TrimSpace(stderr.String())
		if waitErr != nil && msg == "" {
			msg = waitErr.Error()
		}
		s.log.WithFields(logrus.Fields{
			"device": s.device,
			"stderr": msg,
		}).Warn("[Source] ffmpeg produced no frame")
		return nil, fmt.Errorf("%w: no frame from %s", faults.ErrSourceUnavailable, s.device)
	}
	return Decode(frame)
}

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images delimited by
// the SOI and EOI markers.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}
