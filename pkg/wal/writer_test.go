package wal

import (
	"os"
	"testing"
	"time"
)

func insertEntry(lsn uint64, id string) *Entry {
	return &Entry{
		LSN:       lsn,
		Type:      EntryInsert,
		Timestamp: time.Unix(0, 0),
		Body: &InsertBody{
			ID:      id,
			Payload: map[string]any{"name": id},
			Version: 1,
		},
	}
}

func TestWriter_IntervalSync(t *testing.T) {
	tmpFile := t.TempDir() + "/interval.log"

	opts := Options{
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 50 * time.Millisecond,
		BufferSize:           1024,
	}

	w, err := NewWriter(tmpFile, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	if err := w.Append(insertEntry(1, "doc-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	info, err := os.Stat(tmpFile)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Error("file size is 0 after background sync, expected content")
	}

	w.Close()
}

func TestWriter_BatchSync(t *testing.T) {
	tmpFile := t.TempDir() + "/batch.log"

	opts := Options{
		SyncPolicy:     SyncBatch,
		SyncBatchBytes: 40,
		BufferSize:     1024,
	}

	w, err := NewWriter(tmpFile, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	for i := 0; i < 6; i++ {
		if err := w.Append(insertEntry(uint64(i), "doc")); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	info, err := os.Stat(tmpFile)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected batch sync to have flushed some data to disk")
	}

	w.Close()
}

func TestWriter_SyncError(t *testing.T) {
	tmpFile := t.TempDir() + "/sync_error.log"

	w, err := NewWriter(tmpFile, Options{SyncPolicy: SyncEveryWrite})
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	w.file.Close()

	if err := w.Append(insertEntry(1, "doc")); err == nil {
		t.Error("expected error writing to closed file")
	}
}

func TestWriter_CloseSyncError(t *testing.T) {
	tmpFile := t.TempDir() + "/close_sync_error.log"

	w, err := NewWriter(tmpFile, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Append(insertEntry(1, "doc")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	w.file.Close()

	if err := w.Close(); err == nil {
		t.Error("expected error closing writer with closed file")
	}
}

func TestNewWriter_Error(t *testing.T) {
	tmpDir := t.TempDir()
	if _, err := NewWriter(tmpDir, DefaultOptions()); err == nil {
		t.Error("expected error opening a directory as a WAL segment file")
	}
}

func TestWriter_TextFormat(t *testing.T) {
	tmpFile := t.TempDir() + "/text.log"

	opts := DefaultOptions()
	opts.Format = FormatText
	opts.SyncPolicy = SyncEveryWrite

	w, err := NewWriter(tmpFile, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Append(insertEntry(1, "doc-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Error("expected text format to write newline-terminated JSON lines")
	}
}
