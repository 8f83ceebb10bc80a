package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu      sync.RWMutex
	current = LevelInfo
	logger  = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// ParseLevel maps debug|info|warn|error to a Level. Unknown values fall back to info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// InitFromEnv sets the log level from LOG_LEVEL and the output format from LOG_FORMAT (json|text).
func InitFromEnv() {
	Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// Init configures the package logger writing to stderr.
func Init(level, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level, format string) {
	if strings.EqualFold(format, "text") || strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	mu.Lock()
	defer mu.Unlock()
	current = ParseLevel(level)
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// Enabled reports whether messages at lvl are emitted.
func Enabled(lvl Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl >= current
}

func emit(lvl Level, format string, args ...interface{}) {
	mu.RLock()
	l := logger
	enabled := lvl >= current
	mu.RUnlock()
	if !enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch lvl {
	case LevelDebug:
		l.Debug().Msg(msg)
	case LevelInfo:
		l.Info().Msg(msg)
	case LevelWarn:
		l.Warn().Msg(msg)
	default:
		l.Error().Msg(msg)
	}
}

func Debugf(format string, args ...interface{}) {
	emit(LevelDebug, format, args...)
}

func Infof(format string, args ...interface{}) {
	emit(LevelInfo, format, args...)
}

func Warnf(format string, args ...interface{}) {
	emit(LevelWarn, format, args...)
}

func Errorf(format string, args ...interface{}) {
	emit(LevelError, format, args...)
}

func Fatalf(format string, args ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Fatal().Msg(fmt.Sprintf(format, args...))
}
