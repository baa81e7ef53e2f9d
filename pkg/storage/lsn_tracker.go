package storage

import (
	"sync/atomic"
)

// LSNTracker hands out the monotonically increasing log sequence numbers
// every WAL entry is tagged with.
type LSNTracker struct {
	current uint64
}

func NewLSNTracker(start uint64) *LSNTracker {
	return &LSNTracker{
		current: start,
	}
}

// Next atomically increments and returns the next LSN.
func (lt *LSNTracker) Next() uint64 {
	return atomic.AddUint64(&lt.current, 1)
}

// Current returns the last LSN handed out.
func (lt *LSNTracker) Current() uint64 {
	return atomic.LoadUint64(&lt.current)
}

// Set overwrites the counter, used when resuming from a checkpoint's last_lsn.
func (lt *LSNTracker) Set(val uint64) {
	atomic.StoreUint64(&lt.current, val)
}
