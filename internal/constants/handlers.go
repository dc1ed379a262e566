package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// ReplyChannelBuffer is the buffer size for worker reply channels
	ReplyChannelBuffer = 32
)

// File upload constants
const (
	// MaxUploadSize is the maximum frame upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)

// HTTP constants
const (
	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout = 30 * time.Second

	// WebSocketWriteTimeout bounds a single websocket write
	WebSocketWriteTimeout = 10 * time.Second
)
