package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"gopkg.in/yaml.v3"
)

//go:embed emotions.yaml
var emotionsYAML []byte

// Worker transport modes.
const (
	WorkerModeLocal   = "local"
	WorkerModeProcess = "process"
)

// Face detector backends.
const (
	DetectorHTTP  = "http"
	DetectorYuNet = "yunet"
)

// Frame source kinds.
const (
	SourceFile     = "file"
	SourceSnapshot = "snapshot"
	SourceFFmpeg   = "ffmpeg"
)

type Config struct {
	Worker   WorkerConfig
	Detector DetectorConfig
	Source   SourceConfig
	Monitor  MonitorConfig
	Log      LogConfig
	Web      WebConfig
	Emotions EmotionsConfig
}

type WorkerConfig struct {
	Mode     string        // local or process, defaults to local
	ModelURL string        // inference server hosting the emotion model, defaults to http://localhost:8000
	Timeout  time.Duration // per-request HTTP timeout for the model server
	Command  string        // executable for process mode, defaults to the running binary
}

type DetectorConfig struct {
	Kind          string // http or yunet
	URL           string // face service for the http detector, defaults to ModelURL
	Socket        string // unix socket of the YuNet daemon
	MinConfidence float64
}

type SourceConfig struct {
	Kind   string // file, snapshot or ffmpeg
	Path   string // image path for the file source
	URL    string // snapshot endpoint for the snapshot source
	Device string // capture device for the ffmpeg source (e.g., /dev/video0)
	Width  int
	Height int
}

type MonitorConfig struct {
	Interval time.Duration
	Timeout  time.Duration // per-capture deadline
}

type LogConfig struct {
	Level string
	File  string // optional rotated log file
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

type EmotionsConfig struct {
	Fallback string                  `yaml:"fallback"`
	Emotions map[string]EmotionEntry `yaml:"emotions"`
}

type EmotionEntry struct {
	Icon  string `yaml:"icon"`
	Group int    `yaml:"group"`
}

// Catalog builds the emotion display catalog from the embedded table.
func (c *EmotionsConfig) Catalog() *emotion.Catalog {
	entries := make(map[emotion.Tag]emotion.Display, len(c.Emotions))
	for name, e := range c.Emotions {
		entries[emotion.Tag(name)] = emotion.Display{Icon: e.Icon, Group: e.Group}
	}
	return emotion.NewCatalog(c.Fallback, entries)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in [0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envString returns the trimmed value of key, or defaultVal when unset.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// Load reads the configuration from the environment, applying defaults for
// unset keys.
func Load() *Config {
	var emotions EmotionsConfig
	if err := yaml.Unmarshal(emotionsYAML, &emotions); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded emotions.yaml: " + err.Error())
	}

	modelURL := envString("MODEL_URL", "http://localhost:8000")

	return &Config{
		Worker: WorkerConfig{
			Mode:     strings.ToLower(envString("WORKER_MODE", WorkerModeLocal)),
			ModelURL: modelURL,
			Timeout:  time.Duration(envInt("MODEL_TIMEOUT_SECONDS", 60)) * time.Second,
			Command:  os.Getenv("WORKER_COMMAND"),
		},
		Detector: DetectorConfig{
			Kind:          strings.ToLower(envString("DETECTOR", DetectorHTTP)),
			URL:           envString("DETECTOR_URL", modelURL),
			Socket:        envString("YUNET_SOCKET", "/tmp/yunet.sock"),
			MinConfidence: envFloat("FACE_MIN_CONFIDENCE", constants.MinFaceConfidence),
		},
		Source: SourceConfig{
			Kind:   strings.ToLower(envString("SOURCE", SourceFile)),
			Path:   os.Getenv("SOURCE_PATH"),
			URL:    os.Getenv("SOURCE_URL"),
			Device: envString("SOURCE_DEVICE", "/dev/video0"),
			Width:  envInt("SOURCE_WIDTH", constants.DefaultFrameWidth),
			Height: envInt("SOURCE_HEIGHT", constants.DefaultFrameHeight),
		},
		Monitor: MonitorConfig{
			Interval: time.Duration(envInt("MONITOR_INTERVAL_MS", int(constants.MonitorInterval/time.Millisecond))) * time.Millisecond,
			Timeout:  time.Duration(envInt("MONITOR_TIMEOUT_MS", int(constants.CaptureTimeout/time.Millisecond))) * time.Millisecond,
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Emotions: emotions,
	}
}
