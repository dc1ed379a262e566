package facedetect

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/preprocess"
	"github.com/vmihailenco/msgpack/v5"
)

// yunetRequest is sent to the YuNet daemon
type yunetRequest struct {
	Height int    `msgpack:"h"`
	Width  int    `msgpack:"w"`
	Data   []byte `msgpack:"d"` // RGB uint8, row-major, shape (H, W, 3)
}

type yunetDetection struct {
	X          float32   `msgpack:"x"`
	Y          float32   `msgpack:"y"`
	Width      float32   `msgpack:"w"`
	Height     float32   `msgpack:"h"`
	Confidence float32   `msgpack:"c"`
	Landmarks  []float32 `msgpack:"l"`
}

type yunetResponse struct {
	Detections  []yunetDetection `msgpack:"detections"`
	InferenceMs float32          `msgpack:"inference_ms"`
}

// YuNetDetector talks to a local YuNet daemon over a Unix socket, one
// connection per frame.
type YuNetDetector struct {
	socketPath string
	timeout    time.Duration
}

// NewYuNetDetector creates a client for the YuNet daemon listening on socketPath.
func NewYuNetDetector(socketPath string, timeout time.Duration) *YuNetDetector {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &YuNetDetector{socketPath: socketPath, timeout: timeout}
}

func (d *YuNetDetector) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "unix", d.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to YuNet service: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	bounds := frame.Bounds()
	reqData, err := msgpack.Marshal(yunetRequest{
		Height: bounds.Dy(),
		Width:  bounds.Dx(),
		Data:   rgbBytes(frame),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	respData, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp yunetResponse
	if err := msgpack.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	dets := make([]Detection, len(resp.Detections))
	for i, det := range resp.Detections {
		dets[i] = Detection{
			Box: preprocess.BoundingBox{
				X:      float64(det.X),
				Y:      float64(det.Y),
				Width:  float64(det.Width),
				Height: float64(det.Height),
			},
			Confidence: float64(det.Confidence),
		}
	}
	return dets, nil
}

// rgbBytes flattens a frame into packed RGB, dropping alpha.
func rgbBytes(img image.Image) []byte {
	bounds := img.Bounds()
	out := make([]byte, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out = append(out, c.R, c.G, c.B)
		}
	}
	return out
}
