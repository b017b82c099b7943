package env

import (
	"log/slog"
	"strings"
)

// ParseLogLevel maps "debug", "info", "warn" or "error" to a slog.Level.
// An empty or unrecognised value yields fallback.
func ParseLogLevel(raw string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// LogLevel reads LOG_LEVEL from the environment.
func LogLevel(fallback slog.Level) slog.Level {
	return ParseLogLevel(Get("LOG_LEVEL", ""), fallback)
}
