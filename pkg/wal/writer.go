package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bobboyms/corvusdb/pkg/metrics"
	"github.com/rs/zerolog"
)

// Writer appends Entry records to a single append-only segment file, in
// either binary or text format, honoring the configured sync policy.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	options Options
	logger  zerolog.Logger

	batchBytes int64

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWriter opens (or creates) the segment file at path for appending.
// Logging is a no-op until SetLogger is called.
func NewWriter(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open wal segment: %w", err)
	}

	w := &Writer{
		file:    f,
		writer:  bufio.NewWriterSize(f, opts.BufferSize),
		options: opts,
		logger:  zerolog.Nop(),
		done:    make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// SetLogger attaches a structured logger used for sync/flush diagnostics.
// Log lines carry the entry's lsn as a structured field rather than an
// interpolated string.
func (w *Writer) SetLogger(logger zerolog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger
}

// Append writes entry to the log. The caller is responsible for assigning
// entry.LSN before calling Append (the engine's LSNTracker owns sequencing).
func (w *Writer) Append(entry *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var n int64
	var err error
	switch w.options.Format {
	case FormatText:
		n, err = w.appendText(entry)
	default:
		n, err = w.appendBinary(entry)
	}
	if err != nil {
		w.logger.Error().Err(err).Uint64("lsn", entry.LSN).Msg("wal append failed")
		return err
	}

	w.batchBytes += n

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return w.syncLocked()
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			return w.syncLocked()
		}
	}

	return nil
}

func (w *Writer) appendBinary(entry *Entry) (int64, error) {
	payload, err := encodeBody(entry.Body)
	if err != nil {
		return 0, err
	}

	header := Header{
		Magic:      WALMagic,
		Version:    WALVersion,
		EntryType:  entry.Type,
		LSN:        entry.LSN,
		PayloadLen: uint32(len(payload)),
	}
	header.CRC32 = headerChecksum(header, payload)
	entry.Checksum = header.CRC32

	raw := acquireRawEntry()
	defer releaseRawEntry(raw)
	raw.Header = header
	raw.Payload = append(raw.Payload[:0], payload...)

	return raw.WriteTo(w.writer)
}

// textLine is the JSON-line on-disk shape for FormatText.
type textLine struct {
	LSN       uint64    `json:"lsn"`
	Type      EntryType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Checksum  uint32    `json:"checksum"`
	Body      any       `json:"body"`
}

func (w *Writer) appendText(entry *Entry) (int64, error) {
	bodyBytes, err := json.Marshal(entry.Body)
	if err != nil {
		return 0, fmt.Errorf("wal: marshal text body: %w", err)
	}
	checksum := CalculateCRC32(bodyBytes)
	entry.Checksum = checksum

	line := textLine{
		LSN:       entry.LSN,
		Type:      entry.Type,
		Timestamp: entry.Timestamp,
		Checksum:  checksum,
		Body:      entry.Body,
	}
	data, err := json.Marshal(line)
	if err != nil {
		return 0, fmt.Errorf("wal: marshal text line: %w", err)
	}
	data = append(data, '\n')

	n, err := w.writer.Write(data)
	return int64(n), err
}

// Sync flushes the buffer and fsyncs the underlying file.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	timer := metrics.NewTimer()
	defer timer.ObserveSeconds(metrics.WalSyncDuration)

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.batchBytes = 0
	return nil
}

// Close flushes, fsyncs, and closes the segment file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
