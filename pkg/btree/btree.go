package btree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bobboyms/corvusdb/pkg/errors"
	"github.com/bobboyms/corvusdb/pkg/types"
)

// BPlusTree is a concurrent B+Tree mapping types.Comparable keys to values
// of type V, using latch crabbing for fine-grained concurrent descent.
type BPlusTree[V any] struct {
	T         int
	Root      *Node[V]
	UniqueKey bool
	mu        sync.RWMutex
}

// NewTree creates a tree that allows duplicate keys (later inserts overwrite).
func NewTree[V any](t int) *BPlusTree[V] {
	return &BPlusTree[V]{
		T:         t,
		Root:      NewNode[V](t, true),
		UniqueKey: false,
	}
}

// NewUniqueTree creates a tree that rejects inserts over an existing key.
func NewUniqueTree[V any](t int) *BPlusTree[V] {
	return &BPlusTree[V]{
		T:         t,
		Root:      NewNode[V](t, true),
		UniqueKey: true,
	}
}

// Insert adds key->value, honoring UniqueKey.
func (b *BPlusTree[V]) Insert(key types.Comparable, value V) error {
	return b.insertHelper(key, value, b.UniqueKey)
}

// Replace forcibly sets the key's value regardless of UniqueKey.
func (b *BPlusTree[V]) Replace(key types.Comparable, value V) error {
	return b.Upsert(key, func(oldValue V, exists bool) (V, error) {
		return value, nil
	})
}

// Upsert runs fn against the current value (if any) while holding the leaf
// latch, enabling an atomic read-modify-write.
func (b *BPlusTree[V]) Upsert(key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	return b.upsertHelper(key, fn)
}

func (b *BPlusTree[V]) insertHelper(key types.Comparable, value V, uniqueKey bool) error {
	return b.Upsert(key, func(oldValue V, exists bool) (V, error) {
		if exists && uniqueKey {
			var zero V
			return zero, &errors.DuplicateKeyError{Key: fmt.Sprintf("%v", key)}
		}
		return value, nil
	})
}

func (b *BPlusTree[V]) upsertHelper(key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode[V](b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends the tree, splitting full children preventively.
// Assumes curr is already locked by the caller.
func (b *BPlusTree[V]) upsertTopDown(curr *Node[V], key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)

			if key.Compare(curr.Keys[i]) >= 0 {
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		curr.Unlock()
		curr = child
	}

	return curr.UpsertNonFull(key, fn)
}

// Search locates a key concurrently (RLock coupling).
func (b *BPlusTree[V]) Search(key types.Comparable) (*Node[V], bool) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr, true
		}
	}
	return nil, false
}

// Get retrieves the value for key, thread-safely.
func (b *BPlusTree[V]) Get(key types.Comparable) (V, bool) {
	var zero V
	if b == nil {
		return zero, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return zero, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return zero, false
}

// Delete removes key from the tree, returning whether it was present.
func (b *BPlusTree[V]) Delete(key types.Comparable) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Root.Remove(key)
}

// FindLeafLowerBound finds the leaf node for scanning from key onward.
// Returns the node WITH RLock held; the caller must call RUnlock() on it.
// A nil key positions at the first leaf.
func (b *BPlusTree[V]) FindLeafLowerBound(key types.Comparable) (*Node[V], int) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		var i int
		if key == nil {
			i = 0
		} else {
			i = sort.Search(curr.N, func(i int) bool {
				return curr.Keys[i].Compare(key) >= 0
			})
		}

		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	var idx int
	if key == nil {
		idx = 0
	} else {
		idx = sort.Search(curr.N, func(i int) bool {
			return curr.Keys[i].Compare(key) >= 0
		})
		if idx == curr.N && curr.Next != nil {
			next := curr.Next
			next.RLock()
			curr.RUnlock()
			curr = next
			idx = 0
		}
	}

	return curr, idx
}

// findLeafLowerBound is an internal wrapper retained for older callers that
// expect the returned node unlocked.
func (b *BPlusTree[V]) findLeafLowerBound(key types.Comparable) (*Node[V], int) {
	node, idx := b.FindLeafLowerBound(key)
	if node != nil {
		node.RUnlock()
	}
	return node, idx
}
