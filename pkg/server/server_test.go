package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/bobboyms/corvusdb/pkg/client"
	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/bobboyms/corvusdb/pkg/storage"
	"github.com/bobboyms/corvusdb/pkg/txn"
	"github.com/stretchr/testify/require"
)

// startTestServer boots a Server on an ephemeral loopback port against a
// fresh in-memory engine (no WAL, no checkpoints) and returns a dial
// function plus a shutdown func.
func startTestServer(t *testing.T) (dial func() *client.Client, shutdown func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	engine := storage.NewEngine(nil, nil, index.NewManager(), 0)
	txns := txn.NewManager(engine, 0)

	cfg := DefaultConfig()
	cfg.BindAddress = addr
	cfg.CleanupInterval = 50 * time.Millisecond
	cfg.IdleTimeout = time.Hour

	srv := New(cfg, engine, txns)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Give the accept loop a moment to bind before the first dial.
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return func() *client.Client {
			c, err := client.Dial(addr, 5*time.Second)
			require.NoError(t, err)
			return c
		}, func() {
			cancel()
			<-done
		}
}

func TestServer_PingPong(t *testing.T) {
	dial, shutdown := startTestServer(t)
	defer shutdown()

	c := dial()
	defer c.Close()

	resp, err := c.Ping()
	require.NoError(t, err)
	require.Equal(t, "pong", resp["message"])
}

func TestServer_CreateReadUpdateDelete(t *testing.T) {
	dial, shutdown := startTestServer(t)
	defer shutdown()

	c := dial()
	defer c.Close()

	created, err := c.Create(map[string]any{"name": "atlas"}, "")
	require.NoError(t, err)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	require.EqualValues(t, 1, created["version"])

	read, err := c.Read(id)
	require.NoError(t, err)
	doc, _ := read["document"].(map[string]any)
	require.Equal(t, "atlas", doc["name"])

	updateRaw, err := c.Call("update", map[string]any{"id": id, "data": map[string]any{"name": "atlas-v2"}})
	require.NoError(t, err)
	require.Contains(t, string(updateRaw), "atlas-v2")

	deleteRaw, err := c.Call("delete", map[string]any{"id": id})
	require.NoError(t, err)
	require.Contains(t, string(deleteRaw), `"deleted_count":1`)

	_, err = c.Read(id)
	require.Error(t, err)
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, 404, serverErr.Code)
}

func TestServer_VersionConflict(t *testing.T) {
	dial, shutdown := startTestServer(t)
	defer shutdown()

	c := dial()
	defer c.Close()

	created, err := c.Create(map[string]any{"n": 1}, "")
	require.NoError(t, err)
	id := created["id"].(string)

	_, err = c.Call("update", map[string]any{"id": id, "data": map[string]any{"n": 2}, "expected_version": 99})
	require.Error(t, err)
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, 409, serverErr.Code)
}

func TestServer_QueryWithIndex(t *testing.T) {
	dial, shutdown := startTestServer(t)
	defer shutdown()

	c := dial()
	defer c.Close()

	_, err := c.Call("index", map[string]any{"name": "by_status", "operation": "create", "fields": []string{"status"}, "index_type": "hash"})
	require.NoError(t, err)

	_, err = c.Create(map[string]any{"status": "active"}, "")
	require.NoError(t, err)
	_, err = c.Create(map[string]any{"status": "closed"}, "")
	require.NoError(t, err)

	raw, err := c.Call("query", map[string]any{
		"where_clauses": []map[string]any{{"path": "status", "operator": "eq", "value": "active"}},
	})
	require.NoError(t, err)
	require.Contains(t, string(raw), `"index_used":"by_status"`)
	require.Contains(t, string(raw), `"total_count":1`)
}

func TestServer_TransactionCommit(t *testing.T) {
	dial, shutdown := startTestServer(t)
	defer shutdown()

	c := dial()
	defer c.Close()

	beginRaw, err := c.Call("transaction", map[string]any{"operation": "begin"})
	require.NoError(t, err)
	require.Contains(t, string(beginRaw), "transaction_id")

	var begin map[string]any
	require.NoError(t, json.Unmarshal(beginRaw, &begin))
	txID := begin["transaction_id"]

	_, err = c.Call("create", map[string]any{"data": map[string]any{"n": 1}, "id": "tx-doc", "transaction_id": txID})
	require.NoError(t, err)

	// Not yet visible outside the transaction.
	_, err = c.Read("tx-doc")
	require.Error(t, err)

	_, err = c.Call("transaction", map[string]any{"operation": "commit", "transaction_id": txID})
	require.NoError(t, err)

	read, err := c.Read("tx-doc")
	require.NoError(t, err)
	require.NotNil(t, read["document"])
}

func TestServer_ConnectionCloseRollsBackOpenTransaction(t *testing.T) {
	dial, shutdown := startTestServer(t)
	defer shutdown()

	c := dial()

	beginRaw, err := c.Call("transaction", map[string]any{"operation": "begin"})
	require.NoError(t, err)
	var begin map[string]any
	require.NoError(t, json.Unmarshal(beginRaw, &begin))

	require.NoError(t, c.Close())

	// Give the server a moment to notice the closed socket and roll back.
	time.Sleep(100 * time.Millisecond)

	c2 := dial()
	defer c2.Close()
	statsRaw, err := c2.Call("stats", struct{}{})
	require.NoError(t, err)
	require.Contains(t, string(statsRaw), `"active_transactions":0`)
}
