package wal

import (
	"encoding/binary"
	"io"
	"os"
	"testing"
)

func TestReader_RoundTrip(t *testing.T) {
	tmpFile := t.TempDir() + "/round_trip.log"

	opts := Options{SyncPolicy: SyncEveryWrite, BufferSize: 1024}
	w, err := NewWriter(tmpFile, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	if err := w.Append(insertEntry(100, "doc-1")); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	update := &Entry{
		LSN:  101,
		Type: EntryUpdate,
		Body: &UpdateBody{ID: "doc-1", OldVersion: 1, NewVersion: 2},
	}
	if err := w.Append(update); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	w.Close()

	r, err := NewReader(tmpFile, FormatBinary)
	if err != nil {
		t.Fatalf("failed to open reader: %v", err)
	}
	defer r.Close()

	read1, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("ReadEntry 1 failed: %v", err)
	}
	body1, ok := read1.Body.(*InsertBody)
	if !ok || body1.ID != "doc-1" {
		t.Errorf("unexpected body for entry 1: %#v", read1.Body)
	}

	read2, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("ReadEntry 2 failed: %v", err)
	}
	if read2.LSN != 101 {
		t.Errorf("LSN mismatch. got %d, want 101", read2.LSN)
	}

	if _, err := r.ReadEntry(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReader_Corruption(t *testing.T) {
	tmpFile := t.TempDir() + "/corruption.log"

	opts := Options{SyncPolicy: SyncEveryWrite, BufferSize: 1024}
	w, err := NewWriter(tmpFile, opts)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Append(insertEntry(1, "doc-1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	f, err := os.OpenFile(tmpFile, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	if _, err := f.Seek(int64(HeaderSize+2), 0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := f.Write([]byte{0xFF}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	r, err := NewReader(tmpFile, FormatBinary)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadEntry(); err != ErrChecksumMismatch {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestReader_TruncatedPayload(t *testing.T) {
	tmpFile := t.TempDir() + "/truncated.log"

	w, err := NewWriter(tmpFile, Options{SyncPolicy: SyncEveryWrite})
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Append(insertEntry(1, "doc-with-a-longer-identifier-to-pad-the-payload")); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	if err := os.Truncate(tmpFile, int64(HeaderSize+5)); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	r, err := NewReader(tmpFile, FormatBinary)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadEntry(); err != io.ErrUnexpectedEOF {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReader_InvalidMagic(t *testing.T) {
	tmpFile := t.TempDir() + "/bad_magic.log"

	f, err := os.Create(tmpFile)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	invalidHeader := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(invalidHeader[0:4], 0xCAFEBABE)
	f.Write(invalidHeader)
	f.Close()

	r, err := NewReader(tmpFile, FormatBinary)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadEntry(); err != ErrInvalidMagic {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReader_TextFormatRoundTrip(t *testing.T) {
	tmpFile := t.TempDir() + "/text_round_trip.log"

	opts := DefaultOptions()
	opts.Format = FormatText
	opts.SyncPolicy = SyncEveryWrite

	w, err := NewWriter(tmpFile, opts)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Append(insertEntry(7, "doc-7")); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	r, err := NewReader(tmpFile, FormatText)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	entry, err := r.ReadEntry()
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if entry.LSN != 7 {
		t.Errorf("LSN mismatch, got %d", entry.LSN)
	}
	body, ok := entry.Body.(*InsertBody)
	if !ok || body.ID != "doc-7" {
		t.Errorf("unexpected body: %#v", entry.Body)
	}

	if _, err := r.ReadEntry(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}
