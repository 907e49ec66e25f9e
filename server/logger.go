package server

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger глобальный структурированный логгер
var Logger = NewLogger(os.Stdout, "INFO")

// NewLogger создает JSON-логгер с уровнем из конфигурации (DEBUG, INFO, WARN, ERROR)
func NewLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel неизвестный уровень считается INFO
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger заменяет глобальный логгер и slog.Default
func SetupLogger(level string) *slog.Logger {
	Logger = NewLogger(os.Stdout, level)
	slog.SetDefault(Logger)
	return Logger
}
