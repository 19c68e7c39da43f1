package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// CreateLogger builds the service logger writing JSON lines to stdout
func CreateLogger(serviceName string, level string) zerolog.Logger {
	return New(os.Stdout, serviceName, level)
}

// New builds a logger on w. Unknown or empty levels fall back to info.
func New(w io.Writer, serviceName string, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
