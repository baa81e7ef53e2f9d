// Package client is a reference client for the length-framed wire
// protocol implemented by pkg/server: dial, send a framed
// protocol.Request, read back a framed protocol.Response.
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bobboyms/corvusdb/pkg/protocol"
	"github.com/google/uuid"
)

// Client is a single TCP connection to a corvusdb server. Requests issued
// concurrently on one Client are serialized, matching the server's
// per-connection ordering guarantee (§5).
type Client struct {
	conn    net.Conn
	timeout time.Duration

	mu sync.Mutex
}

// Dial opens a connection to addr. timeout bounds every subsequent
// Call's round trip; zero disables deadlines.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends method with params marshaled to JSON and returns the decoded
// result (or an error built from the response's error field).
func (c *Client) Call(method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("client: marshal params: %w", err)
	}

	req := protocol.Request{
		ID:      uuid.NewString(),
		Method:  method,
		Params:  paramsRaw,
		Version: protocol.Version,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: marshal request: %w", err)
	}

	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := protocol.WriteMessage(c.conn, body); err != nil {
		return nil, fmt.Errorf("client: write request: %w", err)
	}

	respBody, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("client: unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, &ServerError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}

	resultRaw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("client: remarshal result: %w", err)
	}
	return resultRaw, nil
}

// ServerError wraps a protocol-level error response.
type ServerError struct {
	Code    int
	Message string
	Data    any
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("corvusdb: server error %d: %s", e.Code, e.Message)
}

// Ping calls the ping method and returns the decoded result.
func (c *Client) Ping() (map[string]any, error) {
	raw, err := c.Call(protocol.MethodPing, struct{}{})
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create calls the create method with the given payload and optional id.
func (c *Client) Create(data any, id string) (map[string]any, error) {
	params := map[string]any{"data": data}
	if id != "" {
		params["id"] = id
	}
	raw, err := c.Call(protocol.MethodCreate, params)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Read calls the read method for a single id.
func (c *Client) Read(id string) (map[string]any, error) {
	raw, err := c.Call(protocol.MethodRead, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
