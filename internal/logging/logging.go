// Package logging configures the structured logger shared by all components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Options controls logger construction.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // optional rotated log file
	NoColor bool
	Output  io.Writer // defaults to os.Stderr
}

var (
	std  = logrus.New()
	once sync.Once
)

// New builds a logger. The first call also installs it as the package default.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColor,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetReportCaller(level >= logrus.DebugLevel)

	once.Do(func() { std = logger })
	return logger
}

// Default returns the package default logger.
func Default() *logrus.Logger {
	return std
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func Debug(fields Fields, msg string) {
	std.WithFields(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	std.WithFields(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	std.WithFields(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	std.WithFields(fields).Error(msg)
}
