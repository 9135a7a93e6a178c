package platform

import (
	"context"
	"log/slog"
)

// LevelTrace is below slog.LevelDebug, so per-transfer
// logs stay off unless explicitly enabled.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs at LevelTrace.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
