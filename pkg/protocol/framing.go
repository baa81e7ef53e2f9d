package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize is the hard cap on a single framed message, matching the
// original implementation's MAX_MESSAGE_SIZE (100 MiB), to bound memory
// allocation against a malicious or malformed length prefix.
const MaxMessageSize = 100 * 1024 * 1024

// WriteMessage writes a 4-byte little-endian length prefix followed by
// message to w.
func WriteMessage(w io.Writer, message []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(message)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(message)
	return err
}

// ReadMessage reads one length-prefixed message from r, rejecting frames
// whose declared length exceeds MaxMessageSize before allocating a buffer
// for the body.
func ReadMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > MaxMessageSize {
		return nil, fmt.Errorf("protocol: message too large: %d bytes", length)
	}

	message := make([]byte, length)
	if _, err := io.ReadFull(r, message); err != nil {
		return nil, err
	}
	return message, nil
}
