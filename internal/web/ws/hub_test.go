package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReading(t *testing.T, conn *websocket.Conn) pipeline.Reading {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var r pipeline.Reading
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestHub_SendsLatestOnConnect(t *testing.T) {
	hub := NewHub(logging.Discard())
	latest := func() (pipeline.Reading, bool) {
		return pipeline.Reading{Emotion: emotion.Neutral, Score: 0.5}, true
	}
	server := httptest.NewServer(NewHandler(hub, latest, nil))
	defer server.Close()

	conn := dial(t, server)
	r := readReading(t, conn)
	require.Equal(t, emotion.Neutral, r.Emotion)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := httptest.NewServer(NewHandler(hub, nil, nil))
	defer server.Close()

	first := dial(t, server)
	second := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastReading(pipeline.Reading{Emotion: emotion.Happy, Score: 0.9, Icon: "😊"})

	for _, conn := range []*websocket.Conn{first, second} {
		r := readReading(t, conn)
		require.Equal(t, emotion.Happy, r.Emotion)
		require.Equal(t, "😊", r.Icon)
	}
}

func TestHub_Run(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := httptest.NewServer(NewHandler(hub, nil, nil))
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	readings := make(chan pipeline.Reading, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, readings)
		close(done)
	}()

	readings <- pipeline.Reading{Error: "no face detected"}
	require.Equal(t, "no face detected", readReading(t, conn).Error)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := httptest.NewServer(NewHandler(hub, nil, nil))
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := httptest.NewServer(NewHandler(hub, nil, nil))
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	require.Zero(t, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
