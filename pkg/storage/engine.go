// Package storage implements the document store: an in-memory id->document
// map guarded by a single writer-exclusive lock, durable via a write-ahead
// log and periodic snapshot checkpoints, and kept consistent with a
// secondary index manager on every mutation.
package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/bobboyms/corvusdb/pkg/errors"
	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/bobboyms/corvusdb/pkg/query"
	"github.com/bobboyms/corvusdb/pkg/wal"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GenerateKey returns a fresh time-ordered document id.
func GenerateKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Engine is the document store. It implements query.Store so the query
// engine can run directly against it.
type Engine struct {
	mu         sync.RWMutex
	documents  map[string]*Document
	indexes    *index.Manager
	wal        *wal.Writer
	lsn        *LSNTracker
	checkpoint *CheckpointManager
	logger     zerolog.Logger
}

// SetLogger attaches a structured logger used for mutation and checkpoint
// diagnostics. Log lines carry lsn/id as structured fields. A fresh Engine
// logs nowhere until this is called.
func (e *Engine) SetLogger(logger zerolog.Logger) {
	e.logger = logger
}

// NewEngine assembles a store around the given WAL writer, checkpoint
// manager and index manager. Any of walWriter/checkpoint may be nil for a
// memory-only configuration (tests, embedding without durability).
func NewEngine(walWriter *wal.Writer, checkpoint *CheckpointManager, indexes *index.Manager, startLSN uint64) *Engine {
	if indexes == nil {
		indexes = index.NewManager()
	}
	return &Engine{
		documents:  make(map[string]*Document),
		indexes:    indexes,
		wal:        walWriter,
		lsn:        NewLSNTracker(startLSN),
		checkpoint: checkpoint,
		logger:     zerolog.Nop(),
	}
}

// Indexes exposes the underlying index manager for create_index/drop_index
// and query planning.
func (e *Engine) Indexes() *index.Manager { return e.indexes }

// Close flushes and closes the WAL, if one is configured.
func (e *Engine) Close() error {
	if e.wal != nil {
		return e.wal.Close()
	}
	return nil
}

func (e *Engine) appendWAL(entryType wal.EntryType, body any) (uint64, error) {
	lsn := e.lsn.Next()
	if e.wal == nil {
		return lsn, nil
	}
	entry := &wal.Entry{
		LSN:       lsn,
		Type:      entryType,
		Timestamp: time.Now().UTC(),
		Body:      body,
	}
	if err := e.wal.Append(entry); err != nil {
		return lsn, &errors.WalError{Reason: err.Error()}
	}
	return lsn, nil
}

// Create assigns a fresh id and inserts payload as version 1.
func (e *Engine) Create(payload any) (*Document, error) {
	return e.CreateWithID(GenerateKey(), payload)
}

// CreateWithID inserts payload under an explicit id, failing if it is
// already in use.
func (e *Engine) CreateWithID(id string, payload any) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.documents[id]; exists {
		return nil, &errors.DocumentAlreadyExistsError{ID: id}
	}

	now := time.Now().UTC()
	doc := &Document{ID: id, Payload: payload, Version: 1, CreatedAt: now, UpdatedAt: now}

	if _, err := e.appendWAL(wal.EntryInsert, wal.InsertBody{
		ID: id, Payload: payload, Version: 1, CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := e.indexes.OnInsert(id, payload); err != nil {
		return nil, err
	}
	e.documents[id] = doc
	return doc.clone(), nil
}

// CreateBatch inserts every payload atomically: either every item gets an
// id and is installed, or the first failure is returned with no partial
// effect on already-processed items in this call.
func (e *Engine) CreateBatch(payloads []any) ([]*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	docs := make([]*Document, len(payloads))
	items := make([]wal.InsertBody, len(payloads))
	ids := make([]string, len(payloads))

	for i, payload := range payloads {
		id := GenerateKey()
		if _, exists := e.documents[id]; exists {
			return nil, &errors.DocumentAlreadyExistsError{ID: id}
		}
		ids[i] = id
		docs[i] = &Document{ID: id, Payload: payload, Version: 1, CreatedAt: now, UpdatedAt: now}
		items[i] = wal.InsertBody{ID: id, Payload: payload, Version: 1, CreatedAt: now}
	}

	if _, err := e.appendWAL(wal.EntryBatchInsert, wal.BatchInsertBody{Items: items}); err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if err := e.indexes.OnInsert(ids[i], doc.Payload); err != nil {
			return nil, err
		}
	}
	out := make([]*Document, len(docs))
	for i, doc := range docs {
		e.documents[doc.ID] = doc
		out[i] = doc.clone()
	}
	return out, nil
}

// ReadByID returns the document, or ok=false if absent — never an error.
func (e *Engine) ReadByID(id string) (*Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.documents[id]
	if !ok {
		return nil, false
	}
	return doc.clone(), true
}

// ReadByIDs returns whichever of ids are present, skipping the rest.
func (e *Engine) ReadByIDs(ids []string) []*Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := e.documents[id]; ok {
			out = append(out, doc.clone())
		}
	}
	return out
}

// ReadAll returns every document ordered by id, with offset/limit applied.
// limit <= 0 means unlimited.
func (e *Engine) ReadAll(offset, limit int) []*Document {
	e.mu.RLock()
	all := make([]*Document, 0, len(e.documents))
	for _, doc := range e.documents {
		all = append(all, doc)
	}
	e.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*Document, len(all))
	for i, doc := range all {
		out[i] = doc.clone()
	}
	return out
}

// ReadByDateRange returns documents whose created_at falls within [start, end].
func (e *Engine) ReadByDateRange(start, end time.Time) []*Document {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*Document
	for _, doc := range e.documents {
		if !doc.CreatedAt.Before(start) && !doc.CreatedAt.After(end) {
			out = append(out, doc.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live documents.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.documents)
}

// Exists reports whether id names a live document.
func (e *Engine) Exists(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.documents[id]
	return ok
}

// Update bumps the version and replaces the payload, failing with
// document-not-found if id is absent.
func (e *Engine) Update(id string, payload any) (*Document, error) {
	return e.updateLocked(id, payload, nil)
}

// UpdateWithVersion is Update gated on the stored version matching expected.
func (e *Engine) UpdateWithVersion(id string, payload any, expected uint64) (*Document, error) {
	return e.updateLocked(id, payload, &expected)
}

func (e *Engine) updateLocked(id string, payload any, expected *uint64) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.documents[id]
	if !ok {
		return nil, &errors.DocumentNotFoundError{ID: id}
	}
	if expected != nil && existing.Version != *expected {
		return nil, &errors.VersionMismatchError{Expected: *expected, Actual: existing.Version}
	}

	newVersion := existing.Version + 1
	now := time.Now().UTC()

	if _, err := e.appendWAL(wal.EntryUpdate, wal.UpdateBody{
		ID: id, OldPayload: existing.Payload, NewPayload: payload,
		OldVersion: existing.Version, NewVersion: newVersion,
	}); err != nil {
		return nil, err
	}

	if err := e.indexes.OnUpdate(id, existing.Payload, payload); err != nil {
		return nil, err
	}

	updated := &Document{ID: id, Payload: payload, Version: newVersion, CreatedAt: existing.CreatedAt, UpdatedAt: now}
	e.documents[id] = updated
	return updated.clone(), nil
}

// Upsert updates id if present, else creates it; reports whether it created.
func (e *Engine) Upsert(id string, payload any) (*Document, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.documents[id]
	now := time.Now().UTC()

	if !ok {
		doc := &Document{ID: id, Payload: payload, Version: 1, CreatedAt: now, UpdatedAt: now}
		if _, err := e.appendWAL(wal.EntryInsert, wal.InsertBody{
			ID: id, Payload: payload, Version: 1, CreatedAt: now,
		}); err != nil {
			return nil, false, err
		}
		if err := e.indexes.OnInsert(id, payload); err != nil {
			return nil, false, err
		}
		e.documents[id] = doc
		return doc.clone(), true, nil
	}

	newVersion := existing.Version + 1
	if _, err := e.appendWAL(wal.EntryUpdate, wal.UpdateBody{
		ID: id, OldPayload: existing.Payload, NewPayload: payload,
		OldVersion: existing.Version, NewVersion: newVersion,
	}); err != nil {
		return nil, false, err
	}
	if err := e.indexes.OnUpdate(id, existing.Payload, payload); err != nil {
		return nil, false, err
	}
	updated := &Document{ID: id, Payload: payload, Version: newVersion, CreatedAt: existing.CreatedAt, UpdatedAt: now}
	e.documents[id] = updated
	return updated.clone(), false, nil
}

// UpdateBatch applies every (id -> payload) pair atomically under one lock,
// failing with document-not-found on the first missing id.
func (e *Engine) UpdateBatch(updates map[string]any) ([]*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, ok := e.documents[id]; !ok {
			return nil, &errors.DocumentNotFoundError{ID: id}
		}
	}

	out := make([]*Document, 0, len(ids))
	now := time.Now().UTC()
	for _, id := range ids {
		existing := e.documents[id]
		payload := updates[id]
		newVersion := existing.Version + 1

		if _, err := e.appendWAL(wal.EntryUpdate, wal.UpdateBody{
			ID: id, OldPayload: existing.Payload, NewPayload: payload,
			OldVersion: existing.Version, NewVersion: newVersion,
		}); err != nil {
			return nil, err
		}
		if err := e.indexes.OnUpdate(id, existing.Payload, payload); err != nil {
			return nil, err
		}
		updated := &Document{ID: id, Payload: payload, Version: newVersion, CreatedAt: existing.CreatedAt, UpdatedAt: now}
		e.documents[id] = updated
		out = append(out, updated.clone())
	}
	return out, nil
}

// Delete removes id, reporting whether it existed.
func (e *Engine) Delete(id string) (bool, error) {
	return e.deleteLocked(id, nil)
}

// DeleteWithVersion is Delete gated on the stored version matching expected.
func (e *Engine) DeleteWithVersion(id string, expected uint64) (bool, error) {
	return e.deleteLocked(id, &expected)
}

func (e *Engine) deleteLocked(id string, expected *uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.documents[id]
	if !ok {
		return false, nil
	}
	if expected != nil && existing.Version != *expected {
		return false, &errors.VersionMismatchError{Expected: *expected, Actual: existing.Version}
	}

	if _, err := e.appendWAL(wal.EntryDelete, wal.DeleteBody{
		ID: id, Payload: existing.Payload, Version: existing.Version,
	}); err != nil {
		return false, err
	}

	if err := e.indexes.OnDelete(id, existing.Payload); err != nil {
		return false, err
	}
	delete(e.documents, id)
	return true, nil
}

// DeleteBatch removes every id that exists, returning the count removed.
func (e *Engine) DeleteBatch(ids []string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, id := range ids {
		existing, ok := e.documents[id]
		if !ok {
			continue
		}
		if _, err := e.appendWAL(wal.EntryDelete, wal.DeleteBody{
			ID: id, Payload: existing.Payload, Version: existing.Version,
		}); err != nil {
			return removed, err
		}
		if err := e.indexes.OnDelete(id, existing.Payload); err != nil {
			return removed, err
		}
		delete(e.documents, id)
		removed++
	}
	return removed, nil
}

// DeleteByDateRange removes every document whose created_at falls within
// [start, end], returning the count removed.
func (e *Engine) DeleteByDateRange(start, end time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var victims []string
	for id, doc := range e.documents {
		if !doc.CreatedAt.Before(start) && !doc.CreatedAt.After(end) {
			victims = append(victims, id)
		}
	}
	sort.Strings(victims)

	removed := 0
	for _, id := range victims {
		existing := e.documents[id]
		if _, err := e.appendWAL(wal.EntryDelete, wal.DeleteBody{
			ID: id, Payload: existing.Payload, Version: existing.Version,
		}); err != nil {
			return removed, err
		}
		if err := e.indexes.OnDelete(id, existing.Payload); err != nil {
			return removed, err
		}
		delete(e.documents, id)
		removed++
	}
	return removed, nil
}

// DeleteAll removes every document, returning the count removed.
func (e *Engine) DeleteAll() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.documents))
	for id := range e.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	removed := 0
	for _, id := range ids {
		existing := e.documents[id]
		if _, err := e.appendWAL(wal.EntryDelete, wal.DeleteBody{
			ID: id, Payload: existing.Payload, Version: existing.Version,
		}); err != nil {
			return removed, err
		}
		if err := e.indexes.OnDelete(id, existing.Payload); err != nil {
			return removed, err
		}
		delete(e.documents, id)
		removed++
	}
	return removed, nil
}

// Stats reports the store's current size.
func (e *Engine) Stats() StorageStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var totalSize int64
	for _, doc := range e.documents {
		totalSize += int64(PayloadSize(doc.Payload))
	}
	return StorageStats{
		DocumentCount:  len(e.documents),
		TotalSizeBytes: totalSize,
		IndexCount:     len(e.indexes.ListIndexes()),
	}
}

// CreateIndex registers a new index, backfilling it from the current store
// contents, and durably records the operation.
func (e *Engine) CreateIndex(cfg index.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	backfill := make([]index.BackfillDoc, 0, len(e.documents))
	for id, doc := range e.documents {
		backfill = append(backfill, index.BackfillDoc{ID: id, Payload: doc.Payload})
	}

	if err := e.indexes.CreateIndex(cfg, backfill); err != nil {
		return err
	}

	_, err := e.appendWAL(wal.EntryIndexOp, wal.IndexOpBody{
		Operation: "create", Name: cfg.Name, Fields: cfg.Fields, Kind: string(cfg.Kind), Unique: cfg.Unique,
	})
	return err
}

// DropIndex removes an index and durably records the operation.
func (e *Engine) DropIndex(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.indexes.DropIndex(name); err != nil {
		return err
	}
	_, err := e.appendWAL(wal.EntryIndexOp, wal.IndexOpBody{Operation: "drop", Name: name})
	return err
}

// Checkpoint writes a consolidated snapshot of the current store and
// indexes, then appends a Checkpoint marker to the WAL.
func (e *Engine) Checkpoint() (string, error) {
	if e.checkpoint == nil {
		return "", &errors.StorageError{Reason: "no checkpoint manager configured"}
	}

	e.mu.RLock()
	docs := make([]*Document, 0, len(e.documents))
	for _, doc := range e.documents {
		docs = append(docs, doc)
	}
	configs := e.indexes.ListIndexes()
	lastLSN := e.lsn.Current()
	e.mu.RUnlock()

	snapshotID, err := e.checkpoint.Create(docs, configs, lastLSN)
	if err != nil {
		return "", err
	}

	if _, err := e.appendWAL(wal.EntryCheckpoint, wal.CheckpointBody{
		SnapshotID: snapshotID, DocumentCount: len(docs), LastLSN: lastLSN,
	}); err != nil {
		return "", err
	}
	e.logger.Info().Str("snapshot_id", snapshotID).Int("documents", len(docs)).Uint64("lsn", lastLSN).Msg("checkpoint created")
	return snapshotID, nil
}

// CurrentLSN returns the most recently assigned log sequence number,
// used by the transaction manager to stamp a transaction's begin-time
// snapshot point.
func (e *Engine) CurrentLSN() uint64 { return e.lsn.Current() }

// AllDocuments implements query.Store.
func (e *Engine) AllDocuments() []query.DocumentView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]query.DocumentView, 0, len(e.documents))
	for id, doc := range e.documents {
		out = append(out, query.DocumentView{ID: id, Payload: clonePayload(doc.Payload)})
	}
	return out
}

// ByIDs implements query.Store.
func (e *Engine) ByIDs(ids []string) []query.DocumentView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]query.DocumentView, 0, len(ids))
	for _, id := range ids {
		if doc, ok := e.documents[id]; ok {
			out = append(out, query.DocumentView{ID: id, Payload: clonePayload(doc.Payload)})
		}
	}
	return out
}
