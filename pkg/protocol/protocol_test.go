package protocol

import (
	"bytes"
	"testing"

	dberrors "github.com/bobboyms/corvusdb/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{ID: "1", Method: "ping", Version: Version}, false},
		{"missing version", Request{ID: "1", Method: "ping"}, true},
		{"empty id", Request{Method: "ping"}, true},
		{"empty method", Request{ID: "1"}, true},
		{"wrong version", Request{ID: "1", Method: "ping", Version: "2.0"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.req.Validate()
			if c.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, CodeInvalidRequest, err.Code)
			} else {
				require.Nil(t, err)
			}
		})
	}
}

func TestFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"id":"abc","method":"ping"}`)

	require.NoError(t, WriteMessage(&buf, payload))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFraming_EmptyMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, nil))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFraming_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	// Declare a length larger than MaxMessageSize without writing that
	// many bytes -- ReadMessage must reject before allocating/reading.
	oversized := uint32(MaxMessageSize + 1)
	lenBuf[0] = byte(oversized)
	lenBuf[1] = byte(oversized >> 8)
	lenBuf[2] = byte(oversized >> 16)
	lenBuf[3] = byte(oversized >> 24)
	buf.Write(lenBuf)

	_, err := ReadMessage(&buf)
	require.Error(t, err)
}

func TestFromError_MapsKnownTypes(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
	}{
		{&dberrors.DocumentNotFoundError{ID: "a"}, CodeDocumentNotFound},
		{&dberrors.DocumentAlreadyExistsError{ID: "a"}, CodeDocumentAlreadyExists},
		{&dberrors.VersionMismatchError{Expected: 1, Actual: 2}, CodeVersionMismatch},
		{&dberrors.LockError{Resource: "doc"}, CodeLockError},
		{&dberrors.TransactionError{TransactionID: 1, Reason: "conflict"}, CodeTransactionError},
		{&dberrors.QueryError{Reason: "bad"}, CodeQueryError},
		{&dberrors.WalError{Reason: "io"}, CodeWalError},
	}
	for _, c := range cases {
		got := FromError(c.err)
		require.NotNil(t, got)
		assert.Equal(t, c.wantCode, got.Code)
	}
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}
