package wal

import (
	"encoding/binary"
	"io"
	"time"
)

// Header layout constants.
const (
	HeaderSize = 24 // fixed header size in bytes
	WALVersion = 1  // current on-disk format version

	WALMagic = 0xDEADBEEF
)

// EntryType identifies the shape of an entry's body.
type EntryType uint8

const (
	EntryInsert EntryType = iota + 1
	EntryUpdate
	EntryDelete
	EntryBatchInsert
	EntryIndexOp
	EntryCheckpoint
	EntryTxBegin
	EntryTxCommit
	EntryTxRollback
)

// Header is the fixed 24-byte prefix of every binary-format entry.
type Header struct {
	Magic      uint32
	Version    uint8
	EntryType  EntryType
	Reserved   uint16
	LSN        uint64
	PayloadLen uint32
	CRC32      uint32
}

// Encode serializes the header into buf, which must be HeaderSize bytes.
func (h *Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = byte(h.EntryType)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.LSN)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

// Decode populates the header from buf, which must be HeaderSize bytes.
func (h *Header) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = EntryType(buf[5])
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.LSN = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// InsertBody is the payload of an EntryInsert entry.
type InsertBody struct {
	ID        string    `bson:"id" json:"id"`
	Payload   any       `bson:"payload" json:"payload"`
	Version   uint64    `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// UpdateBody is the payload of an EntryUpdate entry. It carries both the
// pre- and post-image so replay and audit can reconstruct either side.
type UpdateBody struct {
	ID         string `bson:"id" json:"id"`
	OldPayload any    `bson:"old_payload" json:"old_payload"`
	NewPayload any    `bson:"new_payload" json:"new_payload"`
	OldVersion uint64 `bson:"old_version" json:"old_version"`
	NewVersion uint64 `bson:"new_version" json:"new_version"`
}

// DeleteBody is the payload of an EntryDelete entry.
type DeleteBody struct {
	ID      string `bson:"id" json:"id"`
	Payload any    `bson:"payload" json:"payload"`
	Version uint64 `bson:"version" json:"version"`
}

// BatchInsertBody is the payload of an EntryBatchInsert entry.
type BatchInsertBody struct {
	Items []InsertBody `bson:"items" json:"items"`
}

// IndexOpBody is the payload of an EntryIndexOp entry. It deliberately
// mirrors index.Config's fields rather than importing the index package, so
// the log's wire format does not shift with that package's internals.
type IndexOpBody struct {
	Operation string   `bson:"operation" json:"operation"` // "create" | "drop"
	Name      string   `bson:"name" json:"name"`
	Fields    []string `bson:"fields" json:"fields"`
	Kind      string   `bson:"kind" json:"kind"` // "hash" | "ordered"
	Unique    bool     `bson:"unique" json:"unique"`
}

// CheckpointBody is the payload of an EntryCheckpoint entry.
type CheckpointBody struct {
	SnapshotID    string `bson:"snapshot_id" json:"snapshot_id"`
	DocumentCount int    `bson:"document_count" json:"document_count"`
	LastLSN       uint64 `bson:"last_lsn" json:"last_lsn"`
}

// TxBody is the payload shared by EntryTxBegin/TxCommit/TxRollback entries.
type TxBody struct {
	TransactionID uint64 `bson:"transaction_id" json:"transaction_id"`
}

// Entry is one logical WAL record, independent of on-disk encoding. Body
// holds one of the *Body structs above, determined by Type.
type Entry struct {
	LSN       uint64
	Type      EntryType
	Timestamp time.Time
	Checksum  uint32 `json:"checksum,omitempty"`
	Body      any
}

// rawEntry is the binary-format framing (header + payload bytes) used by
// Writer/Reader before the body is decoded into/from its concrete type.
type rawEntry struct {
	Header  Header
	Payload []byte
}

// WriteTo writes header+payload+'\n' to w.
func (e *rawEntry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Payload)
	if err != nil {
		return int64(n + m), err
	}

	k, err := w.Write([]byte{'\n'})
	return int64(n + m + k), err
}
