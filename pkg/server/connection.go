package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobboyms/corvusdb/pkg/txn"
)

// ConnectionStats tracks per-connection request counters, surfaced through
// the stats wire method.
type ConnectionStats struct {
	RequestsHandled uint64
	BytesRead       uint64
	BytesWritten    uint64
}

// ClientConnection is the server's bookkeeping record for one accepted
// socket: identity, activity timestamps, counters, and the set of
// transactions it has open, so a closed connection can roll them back.
type ClientConnection struct {
	ID          string
	Address     string
	ConnectedAt time.Time

	conn net.Conn

	mu           sync.Mutex
	lastActivity time.Time
	stats        ConnectionStats
	activeTxIDs  map[txn.ID]struct{}
}

func newClientConnection(id, address string, conn net.Conn) *ClientConnection {
	now := time.Now().UTC()
	return &ClientConnection{
		ID:          id,
		Address:     address,
		ConnectedAt: now,
		conn:        conn,

		lastActivity: now,
		activeTxIDs:  make(map[txn.ID]struct{}),
	}
}

// CloseIdle forcibly closes the underlying socket, used by the background
// reaper to evict a connection that has been silent beyond the idle
// timeout. The connection handler's own read loop observes the resulting
// error and unwinds its cleanup path normally.
func (c *ClientConnection) CloseIdle() {
	_ = c.conn.Close()
}

// Touch records request activity, resetting the idle clock and bumping
// counters.
func (c *ClientConnection) touch(bytesRead, bytesWritten int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now().UTC()
	c.stats.RequestsHandled++
	c.stats.BytesRead += uint64(bytesRead)
	c.stats.BytesWritten += uint64(bytesWritten)
}

// IsIdle reports whether this connection has been silent for longer than
// timeout, as of now.
func (c *ClientConnection) IsIdle(now time.Time, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActivity) > timeout
}

// Stats returns a copy of the connection's current counters.
func (c *ClientConnection) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// trackTx records transaction id as open on this connection, so a
// closed connection rolls it back.
func (c *ClientConnection) trackTx(id txn.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeTxIDs[id] = struct{}{}
}

func (c *ClientConnection) untrackTx(id txn.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activeTxIDs, id)
}

// ActiveTxIDs returns the transactions currently open on this connection.
func (c *ClientConnection) ActiveTxIDs() []txn.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]txn.ID, 0, len(c.activeTxIDs))
	for id := range c.activeTxIDs {
		ids = append(ids, id)
	}
	return ids
}

// connectionPool is the shared table of live connections: a RW-locked map
// plus atomic total/peak counters, per §5's shared-resource inventory.
type connectionPool struct {
	cfg Config

	mu          sync.RWMutex
	connections map[string]*ClientConnection

	total uint64
	peak  uint64
}

func newConnectionPool(cfg Config) *connectionPool {
	return &connectionPool{
		cfg:         cfg,
		connections: make(map[string]*ClientConnection),
	}
}

// Add registers a new connection, rejecting it if the pool is already at
// MaxConnections capacity.
func (p *connectionPool) Add(cc *ClientConnection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxConnections > 0 && len(p.connections) >= p.cfg.MaxConnections {
		return false
	}
	p.connections[cc.ID] = cc

	atomic.AddUint64(&p.total, 1)
	count := uint64(len(p.connections))
	for {
		peak := atomic.LoadUint64(&p.peak)
		if count <= peak || atomic.CompareAndSwapUint64(&p.peak, peak, count) {
			break
		}
	}
	return true
}

// Remove drops a connection from the pool.
func (p *connectionPool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.connections, id)
}

// Count returns the number of currently open connections.
func (p *connectionPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}

// TotalAccepted returns the lifetime count of accepted connections.
func (p *connectionPool) TotalAccepted() uint64 {
	return atomic.LoadUint64(&p.total)
}

// PeakConnections returns the highest simultaneous connection count seen.
func (p *connectionPool) PeakConnections() uint64 {
	return atomic.LoadUint64(&p.peak)
}

// idleConnections returns connections idle beyond timeout, for the
// background reaper.
func (p *connectionPool) idleConnections(now time.Time, timeout time.Duration) []*ClientConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var idle []*ClientConnection
	for _, cc := range p.connections {
		if cc.IsIdle(now, timeout) {
			idle = append(idle, cc)
		}
	}
	return idle
}
