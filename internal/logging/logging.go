// v1
// internal/logging/logging.go
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
)

// Init configures slog to write JSON records to both stdout and a file under
// dir. It returns the logger and the opened file so callers can Close() on
// shutdown. A file open failure falls back to stdout only.
func Init(dir, level string) (*slog.Logger, *os.File) {
	if dir == "" {
		dir = "./logs"
	}
	_ = os.MkdirAll(dir, 0o755)

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	filePath := filepath.Join(dir, "home-controller.log")
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
		logger.Error("failed to open log file; falling back to stdout only", "path", filePath, "error", err)
		return logger, os.Stdout
	}

	mw := io.MultiWriter(f, os.Stdout)
	logger := slog.New(slog.NewJSONHandler(mw, opts))

	// make legacy stdlib log align to our multi-writer too
	log.SetOutput(mw)
	return logger, f
}

func parseLevel(s string) slog.Level {
	switch s {
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
