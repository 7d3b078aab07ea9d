// v1
// internal/actions/file.go
package actions

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileRecorder appends JSON lines to a date-stamped file under dir,
// rolling to a new file when the day changes.
type FileRecorder struct {
	dir string
	log *slog.Logger

	mu     sync.Mutex
	day    string
	file   *os.File
	writer *bufio.Writer
}

// NewFileRecorder ensures dir exists and returns the sink.
func NewFileRecorder(dir string, log *slog.Logger) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileRecorder{dir: dir, log: log.With(slog.String("component", "action_file"))}, nil
}

// Record appends the record as one JSON line. Errors are logged, never
// surfaced: a broken ledger must not break temperature control.
func (f *FileRecorder) Record(_ context.Context, rec Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		f.log.Error("action encode failed", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rotateLocked(rec.Timestamp); err != nil {
		f.log.Error("action log open failed", "error", err)
		return
	}
	if _, err := f.writer.Write(append(raw, '\n')); err != nil {
		f.log.Error("action write failed", "error", err)
		return
	}
	if err := f.writer.Flush(); err != nil {
		f.log.Error("action flush failed", "error", err)
	}
}

func (f *FileRecorder) rotateLocked(ts time.Time) error {
	day := ts.Format("2006-01-02")
	if f.file != nil && day == f.day {
		return nil
	}
	if f.file != nil {
		_ = f.writer.Flush()
		_ = f.file.Close()
	}
	path := filepath.Join(f.dir, "actions_"+day+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	f.day = day
	f.file = file
	f.writer = bufio.NewWriter(file)
	return nil
}

// Close flushes and closes the current file.
func (f *FileRecorder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	if err := f.writer.Flush(); err != nil {
		return err
	}
	return f.file.Close()
}
