package wal

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// bodyFor returns a pointer to a zero-valued body struct matching t, used as
// the unmarshal target when decoding an entry off disk.
func bodyFor(t EntryType) (any, error) {
	switch t {
	case EntryInsert:
		return &InsertBody{}, nil
	case EntryUpdate:
		return &UpdateBody{}, nil
	case EntryDelete:
		return &DeleteBody{}, nil
	case EntryBatchInsert:
		return &BatchInsertBody{}, nil
	case EntryIndexOp:
		return &IndexOpBody{}, nil
	case EntryCheckpoint:
		return &CheckpointBody{}, nil
	case EntryTxBegin, EntryTxCommit, EntryTxRollback:
		return &TxBody{}, nil
	default:
		return nil, fmt.Errorf("wal: unknown entry type %d", t)
	}
}

// encodeBody BSON-marshals an entry's body for the binary payload.
func encodeBody(body any) ([]byte, error) {
	data, err := bson.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wal: encode body: %w", err)
	}
	return data, nil
}

// decodeBody BSON-unmarshals payload into the struct matching t.
func decodeBody(t EntryType, payload []byte) (any, error) {
	target, err := bodyFor(t)
	if err != nil {
		return nil, err
	}
	if err := bson.Unmarshal(payload, target); err != nil {
		return nil, fmt.Errorf("wal: decode body: %w", err)
	}
	return target, nil
}

// headerChecksum computes CRC32 over the header (with CRC32 zeroed)
// concatenated with the payload, per the on-disk binary format.
func headerChecksum(h Header, payload []byte) uint32 {
	h.CRC32 = 0
	var headerBuf [HeaderSize]byte
	h.Encode(headerBuf[:])
	combined := make([]byte, 0, HeaderSize+len(payload))
	combined = append(combined, headerBuf[:]...)
	combined = append(combined, payload...)
	return CalculateCRC32(combined)
}
