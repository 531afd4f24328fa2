// Package logging configures the process-wide slog handler.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger for a binary. Every record carries the
// service name so the two binaries can share one log pipeline. Formats are
// "json" (default) and "text"; anything else falls back to json with a
// warning.
func Init(service, format string) *slog.Logger {
	var handler slog.Handler
	var unknown bool

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		handler = slog.NewJSONHandler(os.Stdout, nil)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, nil)
	default:
		unknown = true
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	if unknown {
		logger.Warn("unknown log format, defaulting to json", "format", format)
	}
	return logger
}
