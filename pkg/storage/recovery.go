package storage

import (
	"io"
	"os"
	"time"

	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/bobboyms/corvusdb/pkg/wal"
	"github.com/rs/zerolog"
)

// defaultMaxReplayErrors caps how many individually-corrupt WAL entries a
// recovery pass tolerates before giving up, per the spec's default of 10.
const defaultMaxReplayErrors = 10

// Recover rebuilds an Engine from the most recent snapshot under
// checkpointDir (if any) plus the WAL at walPath, then opens a fresh
// writer at walPath for subsequent traffic. maxReplayErrors <= 0 uses the
// default of 10.
func Recover(walPath string, walOpts wal.Options, checkpointDir string, maxReplayErrors int) (*Engine, RecoveryInfo, error) {
	if maxReplayErrors <= 0 {
		maxReplayErrors = defaultMaxReplayErrors
	}
	start := time.Now()

	checkpoint := NewCheckpointManager(checkpointDir, 3)
	indexes := index.NewManager()
	documents := make(map[string]*Document)

	var info RecoveryInfo
	var lastLSN uint64

	snap, found, err := checkpoint.LoadLatest()
	if err != nil {
		return nil, info, err
	}
	if found {
		info.SnapshotUsed = snap.SnapshotID
		lastLSN = snap.LastLSN
		for _, d := range snap.Documents {
			documents[d.ID] = &Document{
				ID: d.ID, Payload: d.Payload, Version: d.Version,
				CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
			}
		}
		backfill := make([]index.BackfillDoc, 0, len(documents))
		for id, doc := range documents {
			backfill = append(backfill, index.BackfillDoc{ID: id, Payload: doc.Payload})
		}
		for _, cfg := range snap.Indexes {
			if err := indexes.CreateIndex(cfg, backfill); err != nil {
				return nil, info, err
			}
		}
	}

	maxLSN := lastLSN
	if _, statErr := os.Stat(walPath); statErr == nil {
		reader, err := wal.NewReader(walPath, walOpts.Format)
		if err != nil {
			return nil, info, err
		}
		defer reader.Close()

		for {
			entry, err := reader.ReadEntry()
			if err == io.EOF {
				break
			}
			if err != nil {
				info.ReplayErrors++
				if info.ReplayErrors > maxReplayErrors {
					return nil, info, err
				}
				continue
			}

			if entry.LSN > maxLSN {
				maxLSN = entry.LSN
			}
			if entry.LSN <= lastLSN {
				continue
			}

			if err := replayEntry(documents, indexes, entry); err != nil {
				info.ReplayErrors++
				if info.ReplayErrors > maxReplayErrors {
					return nil, info, err
				}
				continue
			}
			info.EntriesReplayed++
		}
	}

	writer, err := wal.NewWriter(walPath, walOpts)
	if err != nil {
		return nil, info, err
	}

	engine := &Engine{
		documents:  documents,
		indexes:    indexes,
		wal:        writer,
		lsn:        NewLSNTracker(maxLSN),
		checkpoint: checkpoint,
		logger:     zerolog.Nop(),
	}

	info.FinalLSN = maxLSN
	info.Duration = time.Since(start)
	return engine, info, nil
}

func replayEntry(documents map[string]*Document, indexes *index.Manager, entry *wal.Entry) error {
	switch entry.Type {
	case wal.EntryInsert:
		body := entry.Body.(*wal.InsertBody)
		doc := &Document{ID: body.ID, Payload: body.Payload, Version: body.Version, CreatedAt: body.CreatedAt, UpdatedAt: body.CreatedAt}
		if _, exists := documents[body.ID]; exists {
			if err := indexes.OnUpdate(body.ID, documents[body.ID].Payload, body.Payload); err != nil {
				return err
			}
		} else if err := indexes.OnInsert(body.ID, body.Payload); err != nil {
			return err
		}
		documents[body.ID] = doc

	case wal.EntryUpdate:
		body := entry.Body.(*wal.UpdateBody)
		existing, exists := documents[body.ID]
		var oldPayload any
		if exists {
			oldPayload = existing.Payload
		}
		if exists {
			if err := indexes.OnUpdate(body.ID, oldPayload, body.NewPayload); err != nil {
				return err
			}
		} else if err := indexes.OnInsert(body.ID, body.NewPayload); err != nil {
			return err
		}
		createdAt := time.Now().UTC()
		if exists {
			createdAt = existing.CreatedAt
		}
		documents[body.ID] = &Document{ID: body.ID, Payload: body.NewPayload, Version: body.NewVersion, CreatedAt: createdAt, UpdatedAt: time.Now().UTC()}

	case wal.EntryDelete:
		body := entry.Body.(*wal.DeleteBody)
		if existing, exists := documents[body.ID]; exists {
			if err := indexes.OnDelete(body.ID, existing.Payload); err != nil {
				return err
			}
			delete(documents, body.ID)
		}

	case wal.EntryBatchInsert:
		body := entry.Body.(*wal.BatchInsertBody)
		for _, item := range body.Items {
			if _, exists := documents[item.ID]; exists {
				continue
			}
			if err := indexes.OnInsert(item.ID, item.Payload); err != nil {
				return err
			}
			documents[item.ID] = &Document{ID: item.ID, Payload: item.Payload, Version: item.Version, CreatedAt: item.CreatedAt, UpdatedAt: item.CreatedAt}
		}

	case wal.EntryIndexOp:
		body := entry.Body.(*wal.IndexOpBody)
		switch body.Operation {
		case "create":
			backfill := make([]index.BackfillDoc, 0, len(documents))
			for id, doc := range documents {
				backfill = append(backfill, index.BackfillDoc{ID: id, Payload: doc.Payload})
			}
			_ = indexes.CreateIndex(index.Config{Name: body.Name, Fields: body.Fields, Kind: index.Kind(body.Kind), Unique: body.Unique}, backfill)
		case "drop":
			_ = indexes.DropIndex(body.Name)
		}

	case wal.EntryCheckpoint, wal.EntryTxBegin, wal.EntryTxCommit, wal.EntryTxRollback:
		// Checkpoint markers and transaction markers are not replayed.
	}
	return nil
}
