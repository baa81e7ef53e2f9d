package txn

import (
	"testing"
	"time"

	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/bobboyms/corvusdb/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *storage.Engine {
	return storage.NewEngine(nil, nil, index.NewManager(), 0)
}

func TestManager_BeginCommitLifecycle(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)

	tx := m.Begin(RepeatableRead, 0)
	require.NoError(t, m.Write(tx.ID, "a", map[string]any{"x": 1}))

	val, ok, err := m.Read(tx.ID, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 1}, val)

	require.NoError(t, m.Commit(tx.ID))

	state, found := m.Status(tx.ID)
	require.True(t, found)
	assert.Equal(t, StateCommitted, state)

	doc, ok := e.ReadByID("a")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 1}, doc.Payload)
}

func TestManager_RollbackDiscardsStagedState(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)

	tx := m.Begin(ReadCommitted, 0)
	require.NoError(t, m.Write(tx.ID, "a", map[string]any{"x": 1}))
	require.NoError(t, m.Rollback(tx.ID))

	_, ok := e.ReadByID("a")
	assert.False(t, ok)

	state, found := m.Status(tx.ID)
	require.True(t, found)
	assert.Equal(t, StateAborted, state)
}

func TestManager_RepeatableReadSnapshotIsStable(t *testing.T) {
	e := newEngine()
	_, err := e.CreateWithID("a", map[string]any{"x": 1})
	require.NoError(t, err)

	m := NewManager(e, 0)
	tx := m.Begin(RepeatableRead, 0)

	_, err = e.Update("a", map[string]any{"x": 2})
	require.NoError(t, err)

	val, ok, err := m.Read(tx.ID, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 1}, val, "repeatable-read must not observe a concurrent commit")
}

func TestManager_ReadCommittedSeesLiveStore(t *testing.T) {
	e := newEngine()
	_, err := e.CreateWithID("a", map[string]any{"x": 1})
	require.NoError(t, err)

	m := NewManager(e, 0)
	tx := m.Begin(ReadCommitted, 0)

	_, err = e.Update("a", map[string]any{"x": 2})
	require.NoError(t, err)

	val, ok, err := m.Read(tx.ID, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 2}, val)
}

// A transaction committing while a conflicting rival is still active
// aborts itself -- conflict checking looks at every other still-active
// transaction, so whichever of two overlapping writers calls Commit first
// finds its rival still active and loses; the survivor then commits clean
// once the loser has vacated the active set. This mirrors this engine's
// original check_conflicts behavior exactly.
func TestManager_WriteWriteConflict_FirstCommitterLosesToStillActiveRival(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)

	tx1 := m.Begin(RepeatableRead, 0)
	tx2 := m.Begin(RepeatableRead, 0)

	require.NoError(t, m.Write(tx1.ID, "a", map[string]any{"x": 1}))
	require.NoError(t, m.Write(tx2.ID, "a", map[string]any{"x": 2}))

	err := m.Commit(tx1.ID)
	require.Error(t, err, "tx1 finds tx2 still active with an overlapping write and aborts")

	state, found := m.Status(tx1.ID)
	require.True(t, found)
	assert.Equal(t, StateAborted, state)

	require.NoError(t, m.Commit(tx2.ID), "tx2 now has no active rival and commits")
}

func TestManager_WriteReadConflict(t *testing.T) {
	e := newEngine()
	_, err := e.CreateWithID("a", map[string]any{"x": 1})
	require.NoError(t, err)

	m := NewManager(e, 0)
	reader := m.Begin(RepeatableRead, 0)
	_, _, err = m.Read(reader.ID, "a")
	require.NoError(t, err)

	writer := m.Begin(RepeatableRead, 0)
	require.NoError(t, m.Write(writer.ID, "a", map[string]any{"x": 2}))

	err = m.Commit(writer.ID)
	require.Error(t, err, "writer finds reader's read set overlapping its write and aborts")

	require.NoError(t, m.Commit(reader.ID), "reader has no active rival left and commits")
}

func TestManager_DeleteStaging(t *testing.T) {
	e := newEngine()
	_, err := e.CreateWithID("a", map[string]any{"x": 1})
	require.NoError(t, err)

	m := NewManager(e, 0)
	tx := m.Begin(RepeatableRead, 0)
	require.NoError(t, m.Delete(tx.ID, "a"))

	_, ok, err := m.Read(tx.ID, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Commit(tx.ID))
	assert.False(t, e.Exists("a"))
}

func TestManager_CommitUnknownTransaction(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)
	err := m.Commit(ID(999))
	require.Error(t, err)
}

func TestManager_DetectDeadlocks_AbortsYoungest(t *testing.T) {
	e := newEngine()
	_, err := e.CreateWithID("a", map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = e.CreateWithID("b", map[string]any{"x": 1})
	require.NoError(t, err)

	m := NewManager(e, 0)
	tx1 := m.Begin(RepeatableRead, 0)
	tx2 := m.Begin(RepeatableRead, 0)

	_, _, err = m.Read(tx1.ID, "a")
	require.NoError(t, err)
	_, _, err = m.Read(tx2.ID, "b")
	require.NoError(t, err)

	require.NoError(t, m.Write(tx1.ID, "b", map[string]any{"x": 2}))
	require.NoError(t, m.Write(tx2.ID, "a", map[string]any{"x": 2}))

	victims := m.DetectDeadlocks()
	require.Len(t, victims, 1)
	assert.Equal(t, tx2.ID, victims[0])

	state, found := m.Status(tx2.ID)
	require.True(t, found)
	assert.Equal(t, StateAborted, state)
}

func TestManager_MinActiveLSN(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)

	noActive := m.MinActiveLSN()
	assert.Equal(t, e.CurrentLSN(), noActive)

	tx1 := m.Begin(RepeatableRead, 0)
	_ = m.Begin(RepeatableRead, 0)

	assert.Equal(t, tx1.SnapshotLSN, m.MinActiveLSN())
}

func TestManager_AbortExpired(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)

	tx := m.Begin(RepeatableRead, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	aborted := m.AbortExpired(time.Now().UTC())
	require.Len(t, aborted, 1)
	assert.Equal(t, tx.ID, aborted[0])
}

func TestManager_VacuumConcluded(t *testing.T) {
	e := newEngine()
	m := NewManager(e, 0)

	tx := m.Begin(ReadCommitted, 0)
	require.NoError(t, m.Commit(tx.ID))

	removed := m.VacuumConcluded(^uint64(0))
	assert.Equal(t, 1, removed)

	_, found := m.Status(tx.ID)
	assert.False(t, found)
}

func TestIsolationLevel_StringAndParse(t *testing.T) {
	lvl, ok := ParseIsolationLevel("serializable")
	require.True(t, ok)
	assert.Equal(t, Serializable, lvl)
	assert.Equal(t, "serializable", lvl.String())

	_, ok = ParseIsolationLevel("bogus")
	assert.False(t, ok)
}
