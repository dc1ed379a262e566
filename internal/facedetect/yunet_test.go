package facedetect

import (
	"context"
	"image"
	"image/color"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// serveYuNet accepts one connection, checks the request and writes resp.
func serveYuNet(t *testing.T, resp yunetResponse, check func(yunetRequest)) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "yunet")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "y.sock")

	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var req yunetRequest
		if err := msgpack.NewDecoder(conn).Decode(&req); err != nil {
			return
		}
		if check != nil {
			check(req)
		}
		data, _ := msgpack.Marshal(resp)
		conn.Write(data)
	}()

	return socket
}

func TestYuNetDetector_Detect(t *testing.T) {
	frame := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	frame.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	got := make(chan yunetRequest, 1)
	socket := serveYuNet(t, yunetResponse{
		Detections: []yunetDetection{{X: 1, Y: 0, Width: 2, Height: 2, Confidence: 0.75}},
	}, func(req yunetRequest) { got <- req })

	det := NewYuNetDetector(socket, time.Second)
	dets, err := det.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dets) != 1 || dets[0].Box != box(1, 0, 2, 2) || dets[0].Confidence != 0.75 {
		t.Errorf("unexpected detections %+v", dets)
	}

	req := <-got
	if req.Width != 4 || req.Height != 2 || len(req.Data) != 4*2*3 {
		t.Fatalf("unexpected request geometry %dx%d (%d bytes)", req.Width, req.Height, len(req.Data))
	}
	if req.Data[3] != 10 || req.Data[4] != 20 || req.Data[5] != 30 {
		t.Errorf("expected packed RGB for pixel (1,0), got %v", req.Data[3:6])
	}
}

func TestYuNetDetector_ConnectError(t *testing.T) {
	det := NewYuNetDetector(filepath.Join(t.TempDir(), "missing.sock"), 50*time.Millisecond)
	if _, err := det.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("expected connection error")
	}
}
