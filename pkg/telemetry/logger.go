// Package telemetry provides the structured logger shared by every binary
// in this module (gateway, market-data, trading-engine). Each service
// injects its own *slog.Logger via constructor rather than relying on
// slog's package-level default, so components stay testable in isolation.
package telemetry

import (
	"log/slog"
	"os"
)

// NewLogger builds a slog.Logger writing to stdout. format is "json" or
// "text" (default); level is one of debug/info/warn/error (default info).
func NewLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger tagged with a component name, the
// pattern used throughout internal/ to identify which subsystem emitted a
// given log line without threading prefixes through every call site.
func Component(base *slog.Logger, name string) *slog.Logger {
	return base.With("component", name)
}
