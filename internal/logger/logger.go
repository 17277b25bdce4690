package logger

import (
	"context"
	"log/slog"
	"os"
)

var (
	globalLogger *slog.Logger
	verboseMode  bool
)

// Init configures the global logger. In verbose mode everything goes to
// stderr at debug level; otherwise only errors are emitted so the bridge
// host can keep stdout clean for native-messaging frames.
func Init(verbose bool) {
	verboseMode = verbose

	if verbose {
		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		globalLogger = slog.New(&discardHandler{})
	}
	slog.SetDefault(globalLogger)
}

// discardHandler drops all records when verbose mode is disabled
type discardHandler struct{}

func (h *discardHandler) Enabled(_ context.Context, _ slog.Level) bool { return false }
func (h *discardHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}
func (h *discardHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *discardHandler) WithGroup(_ string) slog.Handler      { return h }

// Debug logs debug messages only in verbose mode
func Debug(msg string, args ...any) {
	if verboseMode && globalLogger != nil {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs info messages only in verbose mode
func Info(msg string, args ...any) {
	if verboseMode && globalLogger != nil {
		globalLogger.Info(msg, args...)
	}
}

// Warn logs warning messages only in verbose mode
func Warn(msg string, args ...any) {
	if verboseMode && globalLogger != nil {
		globalLogger.Warn(msg, args...)
	}
}

// Error always logs, regardless of verbose mode
func Error(msg string, args ...any) {
	if globalLogger == nil || !verboseMode {
		errorLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		errorLogger.Error(msg, args...)
		return
	}
	globalLogger.Error(msg, args...)
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verboseMode
}
