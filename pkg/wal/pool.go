package wal

import "sync"

// pool.go keeps writer/reader allocations off the hot path.

var (
	rawEntryPool = sync.Pool{
		New: func() interface{} {
			return &rawEntry{
				Payload: make([]byte, 0, 4096),
			}
		},
	}

	bufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 8192)
			return &buf
		},
	}
)

func acquireRawEntry() *rawEntry {
	return rawEntryPool.Get().(*rawEntry)
}

func releaseRawEntry(e *rawEntry) {
	e.Header = Header{}
	e.Payload = e.Payload[:0]
	rawEntryPool.Put(e)
}

// AcquireBuffer obtains a pooled byte buffer.
func AcquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// ReleaseBuffer returns a byte buffer to the pool.
func ReleaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
