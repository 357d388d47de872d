package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	rec := Record{
		Timestamp:  time.Now(),
		Author:     "jin <jin@localhost>",
		FilesCount: 2,
		Layers:     map[string]string{"refs/jin/layers/global/_": "deadbeef"},
	}
	if err := l.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected at least one line in audit log")
	}
	var got Record
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal audit line: %v", err)
	}
	if got.Author != rec.Author || got.FilesCount != rec.FilesCount {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestAppendBestEffortNeverPanics(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	// AppendBestEffort must never return an error for the caller to
	// handle, confirm it's safe to call even after Close.
	_ = l.Close()
	l.AppendBestEffort(Record{Timestamp: time.Now(), Author: "jin"})
}
