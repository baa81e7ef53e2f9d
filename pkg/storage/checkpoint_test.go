package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager_CreateAndLoadLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	cm := NewCheckpointManager(dir, 3)

	docs := []*Document{
		{ID: "a", Payload: map[string]any{"x": 1}, Version: 1, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
	}
	configs := []index.Config{{Name: "by_x", Fields: []string{"x"}, Kind: index.KindHash}}

	id, err := cm.Create(docs, configs, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	latest, found, err := cm.LoadLatest()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, latest.SnapshotID)
	assert.Equal(t, uint64(42), latest.LastLSN)
	require.Len(t, latest.Documents, 1)
	assert.Equal(t, "a", latest.Documents[0].ID)
	require.Len(t, latest.Indexes, 1)
	assert.Equal(t, "by_x", latest.Indexes[0].Name)
}

func TestCheckpointManager_LoadLatest_Empty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	cm := NewCheckpointManager(dir, 3)

	_, found, err := cm.LoadLatest()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckpointManager_Prune(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	cm := NewCheckpointManager(dir, 2)

	for i := 0; i < 5; i++ {
		_, err := cm.Create(nil, nil, uint64(i))
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	names, err := cm.listSnapshots()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(names), 2)
}
