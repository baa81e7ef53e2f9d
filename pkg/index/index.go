// Package index implements the secondary index manager: hash and ordered
// indexes, including composite (multi-field) keys, whose buckets hold sets
// of document ids rather than the documents themselves. The ordered variant
// is backed by this codebase's generic B+Tree; the hash variant is a
// sharded map keyed by the canonical string form of the derived key.
package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/bobboyms/corvusdb/pkg/btree"
	"github.com/bobboyms/corvusdb/pkg/errors"
	"github.com/bobboyms/corvusdb/pkg/types"
)

// Kind is the storage family of an index.
type Kind string

const (
	KindHash    Kind = "hash"
	KindOrdered Kind = "ordered"
)

// Config describes one index: its name, the JSON paths it is derived from
// (in order — order matters for composite prefix matching), its storage
// kind, and whether it rejects non-unique keys.
type Config struct {
	Name      string
	Fields    []string
	Kind      Kind
	Unique    bool
	CreatedAt time.Time
}

func (c Config) composite() bool { return len(c.Fields) > 1 }

// IDSet is a bucket of document ids.
type IDSet map[string]struct{}

func newIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) add(id string)      { s[id] = struct{}{} }
func (s IDSet) remove(id string)   { delete(s, id) }
func (s IDSet) has(id string) bool { _, ok := s[id]; return ok }

// ToSlice returns the set's ids in no particular order.
func (s IDSet) ToSlice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Union merges other's ids into a fresh set without mutating either input.
func Union(sets ...IDSet) IDSet {
	out := make(IDSet)
	for _, s := range sets {
		for id := range s {
			out[id] = struct{}{}
		}
	}
	return out
}

// BackfillDoc is a (id, payload) pair handed to CreateIndex when populating
// a newly created index from the documents already in the store.
type BackfillDoc struct {
	ID      string
	Payload any
}

// IndexStats mirrors the statistics surface of the Rust reference index
// manager: total entries (id references across all buckets), distinct key
// count, and a rough memory estimate.
type IndexStats struct {
	Name                  string
	TotalEntries          int
	UniqueValues          int
	EstimatedMemoryUsage  int64
}

type entry struct {
	config  Config
	hash    *hashStorage
	ordered *orderedStorage
}

// Manager owns every index over the store's documents and keeps them
// consistent with on_insert/on_update/on_delete notifications from the
// store's write path.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]*entry
}

// NewManager returns an empty index manager.
func NewManager() *Manager {
	return &Manager{indexes: make(map[string]*entry)}
}

// CreateIndex registers a new index and backfills it from existing. It
// fails without side effects if the name is taken or backfill hits a
// uniqueness conflict.
func (m *Manager) CreateIndex(cfg Config, existing []BackfillDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.indexes[cfg.Name]; ok {
		return &errors.IndexAlreadyExistsError{Name: cfg.Name}
	}
	if len(cfg.Fields) == 0 {
		return &errors.ValidationError{Reason: fmt.Sprintf("index %q must name at least one field", cfg.Name)}
	}

	e := &entry{config: cfg}
	switch cfg.Kind {
	case KindHash:
		e.hash = newHashStorage()
	case KindOrdered:
		e.ordered = newOrderedStorage()
	default:
		return &errors.ValidationError{Reason: fmt.Sprintf("unknown index kind %q", cfg.Kind)}
	}

	for _, doc := range existing {
		key := deriveKey(cfg.Fields, doc.Payload)
		if cfg.Unique {
			if set, ok := e.lookupExact(key); ok && len(set) > 0 {
				return &errors.DocumentAlreadyExistsError{ID: fmt.Sprintf("%s=%s", cfg.Name, key.String())}
			}
		}
		if err := e.insert(key, doc.ID); err != nil {
			return err
		}
	}

	m.indexes[cfg.Name] = e
	return nil
}

// DropIndex removes an index. It is a no-op error if the name is unknown.
func (m *Manager) DropIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; !ok {
		return &errors.IndexNotFoundError{Name: name}
	}
	delete(m.indexes, name)
	return nil
}

// OnInsert updates every index for a newly created document. Unique
// violations are checked against all indexes before any bucket is mutated,
// so a rejected insert leaves every index untouched.
func (m *Manager) OnInsert(id string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make(map[string]types.Comparable, len(m.indexes))
	for name, e := range m.indexes {
		key := deriveKey(e.config.Fields, payload)
		if e.config.Unique {
			if existing, ok := e.lookupExact(key); ok && len(existing) > 0 {
				return &errors.DocumentAlreadyExistsError{ID: fmt.Sprintf("%s=%s", name, key.String())}
			}
		}
		keys[name] = key
	}

	for name, e := range m.indexes {
		if err := e.insert(keys[name], id); err != nil {
			return err
		}
	}
	return nil
}

// OnUpdate removes the old key and inserts the new key for every index.
// Fields whose extracted value did not change collapse to a no-op.
func (m *Manager) OnUpdate(id string, oldPayload, newPayload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newKeys := make(map[string]types.Comparable, len(m.indexes))
	for name, e := range m.indexes {
		newKey := deriveKey(e.config.Fields, newPayload)
		if e.config.Unique {
			oldKey := deriveKey(e.config.Fields, oldPayload)
			if oldKey.Compare(newKey) != 0 {
				if existing, ok := e.lookupExact(newKey); ok && len(existing) > 0 {
					return &errors.DocumentAlreadyExistsError{ID: fmt.Sprintf("%s=%s", name, newKey.String())}
				}
			}
		}
		newKeys[name] = newKey
	}

	for name, e := range m.indexes {
		oldKey := deriveKey(e.config.Fields, oldPayload)
		e.remove(oldKey, id)
		if err := e.insert(newKeys[name], id); err != nil {
			return err
		}
	}
	return nil
}

// OnDelete removes a document from every index bucket.
func (m *Manager) OnDelete(id string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.indexes {
		key := deriveKey(e.config.Fields, payload)
		e.remove(key, id)
	}
	return nil
}

// FindBestIndex returns the index whose fields exactly match fields, or
// failing that the first index whose field prefix matches fields (ordered
// matching — callers choose the field order, composites match by prefix).
func (m *Manager) FindBestIndex(fields []string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, e := range m.indexes {
		if sameFields(e.config.Fields, fields) {
			return name, true
		}
	}
	for name, e := range m.indexes {
		if fieldsArePrefix(fields, e.config.Fields) {
			return name, true
		}
	}
	return "", false
}

// LookupExact returns the id set for an exact key match.
func (m *Manager) LookupExact(name string, values []any) (IDSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.indexes[name]
	if !ok {
		return nil, &errors.IndexNotFoundError{Name: name}
	}
	key := keyFromValues(e.config.Fields, values)
	set, _ := e.lookupExact(key)
	return set, nil
}

// LookupRange returns ids whose key falls within [min, max] (either bound
// may be nil for an open range). Only defined for ordered single-field
// indexes; composite ordered indexes return a query-error.
func (m *Manager) LookupRange(name string, min, max any) (IDSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.indexes[name]
	if !ok {
		return nil, &errors.IndexNotFoundError{Name: name}
	}
	if e.config.Kind != KindOrdered {
		return nil, &errors.QueryError{Reason: fmt.Sprintf("index %q is not ordered, range lookup unsupported", name)}
	}
	if e.config.composite() {
		return nil, &errors.QueryError{Reason: fmt.Sprintf("range lookup on composite ordered index %q is not supported", name)}
	}

	var minKey, maxKey types.Comparable
	if min != nil {
		minKey = types.FromJSON(min)
	}
	if max != nil {
		maxKey = types.FromJSON(max)
	}
	return e.ordered.rangeScan(minKey, maxKey), nil
}

// IndexConfig returns the config of a registered index.
func (m *Manager) IndexConfig(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.indexes[name]
	if !ok {
		return Config{}, false
	}
	return e.config, true
}

// ListIndexes returns the configs of every registered index.
func (m *Manager) ListIndexes() []Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Config, 0, len(m.indexes))
	for _, e := range m.indexes {
		out = append(out, e.config)
	}
	return out
}

// Stats reports usage statistics for a single index.
func (m *Manager) Stats(name string) (IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.indexes[name]
	if !ok {
		return IndexStats{}, &errors.IndexNotFoundError{Name: name}
	}
	return e.stats(), nil
}

func (e *entry) insert(key types.Comparable, id string) error {
	if e.hash != nil {
		return e.hash.insert(key, id)
	}
	return e.ordered.insert(key, id)
}

func (e *entry) remove(key types.Comparable, id string) {
	if e.hash != nil {
		e.hash.remove(key, id)
		return
	}
	e.ordered.remove(key, id)
}

func (e *entry) lookupExact(key types.Comparable) (IDSet, bool) {
	if e.hash != nil {
		return e.hash.lookup(key)
	}
	return e.ordered.lookup(key)
}

func (e *entry) stats() IndexStats {
	var total, unique int
	if e.hash != nil {
		total, unique = e.hash.stats()
	} else {
		total, unique = e.ordered.stats()
	}
	return IndexStats{
		Name:                 e.config.Name,
		TotalEntries:         total,
		UniqueValues:         unique,
		EstimatedMemoryUsage: int64(unique)*64 + int64(total)*48,
	}
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fieldsArePrefix reports whether requested is an ordered prefix of indexed.
func fieldsArePrefix(requested, indexed []string) bool {
	if len(requested) == 0 || len(requested) > len(indexed) {
		return false
	}
	for i := range requested {
		if requested[i] != indexed[i] {
			return false
		}
	}
	return true
}

// deriveKey extracts cfg.Fields from payload and builds the Comparable key,
// folding multiple fields into a CompositeKey in field order.
func deriveKey(fields []string, payload any) types.Comparable {
	if len(fields) == 1 {
		return fieldKey(fields[0], payload)
	}
	composite := make(types.CompositeKey, len(fields))
	for i, f := range fields {
		composite[i] = fieldKey(f, payload)
	}
	return composite
}

func fieldKey(path string, payload any) types.Comparable {
	v, ok := types.ExtractPath(payload, path)
	if !ok {
		return types.NullKey{}
	}
	return types.FromJSON(v)
}

// keyFromValues builds a lookup key from caller-supplied raw JSON values,
// in the same field order as the index's config.
func keyFromValues(fields []string, values []any) types.Comparable {
	if len(fields) == 1 {
		if len(values) == 0 {
			return types.NullKey{}
		}
		return types.FromJSON(values[0])
	}
	composite := make(types.CompositeKey, len(fields))
	for i := range fields {
		if i < len(values) {
			composite[i] = types.FromJSON(values[i])
		} else {
			composite[i] = types.NullKey{}
		}
	}
	return composite
}

// hashStorage is the hash-index variant: a flat map keyed by the canonical
// string form of the derived key, guarded by its own lock so index lookups
// don't contend with the manager's bookkeeping lock.
type hashStorage struct {
	mu      sync.RWMutex
	buckets map[string]IDSet
}

func newHashStorage() *hashStorage {
	return &hashStorage{buckets: make(map[string]IDSet)}
}

func (h *hashStorage) insert(key types.Comparable, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key.String()
	if h.buckets[k] == nil {
		h.buckets[k] = newIDSet()
	}
	h.buckets[k].add(id)
	return nil
}

func (h *hashStorage) remove(key types.Comparable, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key.String()
	if set, ok := h.buckets[k]; ok {
		set.remove(id)
		if len(set) == 0 {
			delete(h.buckets, k)
		}
	}
}

func (h *hashStorage) lookup(key types.Comparable) (IDSet, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.buckets[key.String()]
	return set, ok
}

func (h *hashStorage) stats() (total, unique int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	unique = len(h.buckets)
	for _, set := range h.buckets {
		total += len(set)
	}
	return total, unique
}

// orderedStorage is the ordered-index variant, backed by the generic
// B+Tree so range scans stay O(log n + k).
type orderedStorage struct {
	tree *btree.BPlusTree[IDSet]
}

func newOrderedStorage() *orderedStorage {
	return &orderedStorage{tree: btree.NewTree[IDSet](32)}
}

func (o *orderedStorage) insert(key types.Comparable, id string) error {
	return o.tree.Upsert(key, func(old IDSet, exists bool) (IDSet, error) {
		if !exists {
			return newIDSet(id), nil
		}
		old.add(id)
		return old, nil
	})
}

func (o *orderedStorage) remove(key types.Comparable, id string) {
	_ = o.tree.Upsert(key, func(old IDSet, exists bool) (IDSet, error) {
		if exists {
			old.remove(id)
		}
		return old, nil
	})
	if set, ok := o.tree.Get(key); ok && len(set) == 0 {
		o.tree.Delete(key)
	}
}

func (o *orderedStorage) lookup(key types.Comparable) (IDSet, bool) {
	return o.tree.Get(key)
}

func (o *orderedStorage) rangeScan(min, max types.Comparable) IDSet {
	out := make(IDSet)
	node, idx := o.tree.FindLeafLowerBound(min)
	for node != nil {
		for i := idx; i < node.N; i++ {
			key := node.Keys[i]
			if min != nil && key.Compare(min) < 0 {
				continue
			}
			if max != nil && key.Compare(max) > 0 {
				node.RUnlock()
				return out
			}
			for id := range node.Values[i] {
				out[id] = struct{}{}
			}
		}
		next := node.Next
		next.RLock()
		node.RUnlock()
		node = next
		idx = 0
	}
	return out
}

func (o *orderedStorage) stats() (total, unique int) {
	node, idx := o.tree.FindLeafLowerBound(nil)
	for node != nil {
		for i := idx; i < node.N; i++ {
			unique++
			total += len(node.Values[i])
		}
		next := node.Next
		next.RLock()
		node.RUnlock()
		node = next
		idx = 0
	}
	return total, unique
}
