package main

import (
	"path/filepath"
	"time"

	"github.com/bobboyms/corvusdb/internal/config"
	"github.com/bobboyms/corvusdb/internal/logging"
	"github.com/bobboyms/corvusdb/pkg/server"
	"github.com/bobboyms/corvusdb/pkg/storage"
	"github.com/bobboyms/corvusdb/pkg/txn"
	"github.com/bobboyms/corvusdb/pkg/wal"
	"github.com/rs/zerolog"
)

// walOptions translates the string-valued, viper-friendly WalConfig into
// pkg/wal's typed Options.
func walOptions(cfg config.WalConfig) wal.Options {
	opts := wal.DefaultOptions()
	opts.DirPath = cfg.DirPath
	opts.SyncBatchBytes = cfg.SyncBatchBytes

	switch cfg.SyncPolicy {
	case "every-write":
		opts.SyncPolicy = wal.SyncEveryWrite
	case "batch":
		opts.SyncPolicy = wal.SyncBatch
	default:
		opts.SyncPolicy = wal.SyncInterval
	}
	if cfg.SyncIntervalMillis > 0 {
		opts.SyncIntervalDuration = time.Duration(cfg.SyncIntervalMillis) * time.Millisecond
	}

	switch cfg.Format {
	case "text":
		opts.Format = wal.FormatText
	default:
		opts.Format = wal.FormatBinary
	}
	return opts
}

func walPath(cfg config.WalConfig) string {
	return filepath.Join(cfg.DirPath, "corvusdb.wal")
}

func logLevel(name string) logging.Level {
	switch name {
	case "debug":
		return logging.DebugLevel
	case "warn":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}

// recoverEngine performs the WAL/snapshot recovery pass and wires a fresh
// logger into the resulting Engine.
func recoverEngine(cfg config.Config, root zerolog.Logger) (*storage.Engine, storage.RecoveryInfo, error) {
	engine, info, err := storage.Recover(
		walPath(cfg.Wal),
		walOptions(cfg.Wal),
		cfg.Wal.CheckpointDir,
		cfg.Wal.MaxReplayErrors,
	)
	if err != nil {
		return nil, info, err
	}
	engine.SetLogger(logging.Component(root, "storage"))
	return engine, info, nil
}

// newTransactionManager builds the transaction manager over engine,
// matching the "fresh transaction manager" step of SPEC_FULL.md §9's
// initialization order -- it is never itself recovered from durable state.
func newTransactionManager(engine *storage.Engine) *txn.Manager {
	return txn.NewManager(engine, 30*time.Second)
}

// newServer assembles a server.Server over engine and txns, wired with the
// server-component logger.
func newServer(cfg config.ServerConfig, engine *storage.Engine, txns *txn.Manager, root zerolog.Logger) *server.Server {
	srv := server.New(server.Config{
		BindAddress:     cfg.BindAddress,
		MaxConnections:  cfg.MaxConnections,
		IdleTimeout:     cfg.IdleTimeout,
		RequestTimeout:  cfg.RequestTimeout,
		MaxRequestSize:  cfg.MaxRequestSize,
		CleanupInterval: cfg.CleanupInterval,
	}, engine, txns)
	srv.SetLogger(logging.Component(root, "server"))
	return srv
}
