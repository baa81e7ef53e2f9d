// Package server implements the length-framed TCP wire server: connection
// acceptance and pooling, the per-connection read-dispatch-write loop, and
// the method dispatch table that wires protocol requests to the document
// store, the query engine, and the transaction manager.
package server

import "time"

// Config configures the wire server's connection and request handling
// limits.
type Config struct {
	BindAddress     string
	MaxConnections  int
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	MaxRequestSize  int
	CleanupInterval time.Duration
}

// DefaultConfig mirrors the reference implementation's ServerConfig
// defaults (1000 connections, 300s idle timeout, 30s request timeout,
// 16 MiB max request size, 60s cleanup interval).
func DefaultConfig() Config {
	return Config{
		BindAddress:     "127.0.0.1:7878",
		MaxConnections:  1000,
		IdleTimeout:     300 * time.Second,
		RequestTimeout:  30 * time.Second,
		MaxRequestSize:  16 * 1024 * 1024,
		CleanupInterval: 60 * time.Second,
	}
}
