// v0
// internal/actions/file_test.go
package actions

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRecorderWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewFileRecorder(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	defer rec.Close()

	first := HeaterOperation("room1", true, 18.2, 20, true)
	second := TemperatureChange("room1", 20, 17, "manual")
	rec.Record(context.Background(), first)
	rec.Record(context.Background(), second)

	path := filepath.Join(dir, "actions_"+first.Timestamp.Format("2006-01-02")+".log")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer f.Close()

	var lines []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("bad ledger line: %v", err)
		}
		lines = append(lines, r)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if lines[0].Type != TypeHeaterOperation || lines[0].RoomID != "room1" {
		t.Fatalf("unexpected first record: %+v", lines[0])
	}
	if lines[0].Data["heater_status"] != "ON" {
		t.Fatalf("heater status missing from data: %v", lines[0].Data)
	}
	if lines[1].Type != TypeTemperatureChange {
		t.Fatalf("unexpected second record: %+v", lines[1])
	}
	if lines[0].ID == lines[1].ID || lines[0].ID == "" {
		t.Fatal("records must carry distinct non-empty ids")
	}
}
