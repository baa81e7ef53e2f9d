package storage

import "time"

// Document is one stored record: a decoded JSON payload plus its version
// and timestamps. Payload is the in-memory "live" representation the query
// engine and index manager inspect directly; the durable copy is its BSON
// encoding (bson.go).
type Document struct {
	ID        string
	Payload   any
	Version   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Document) clone() *Document {
	return &Document{
		ID:        d.ID,
		Payload:   clonePayload(d.Payload),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// clonePayload deep-copies a decoded JSON value (nil/bool/float64/string/
// []any/map[string]any) so callers can read and mutate the result without
// racing the store's own copy. The query engine's "no mutation while
// evaluating" contract relies on this.
func clonePayload(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = clonePayload(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = clonePayload(val)
		}
		return out
	default:
		return v
	}
}

// StorageStats is the result of the store's stats() operation.
type StorageStats struct {
	DocumentCount  int
	TotalSizeBytes int64
	IndexCount     int
}

// RecoveryInfo summarizes a WAL/snapshot recovery pass at startup.
type RecoveryInfo struct {
	SnapshotUsed    string
	EntriesReplayed int
	ReplayErrors    int
	Duration        time.Duration
	FinalLSN        uint64
}
