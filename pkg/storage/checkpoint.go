package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bobboyms/corvusdb/pkg/index"
	"github.com/google/uuid"
)

// snapshotSchemaVersion is bumped whenever the on-disk snapshot shape
// changes in a way that is not backward compatible.
const snapshotSchemaVersion = 1

// snapshotDocument is one document's durable form inside a snapshot file.
type snapshotDocument struct {
	ID        string    `json:"id"`
	Payload   any       `json:"payload"`
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// snapshotFile is the single consolidated JSON snapshot written by
// CheckpointManager.Create: every live document plus every index
// configuration, as of last_lsn.
type snapshotFile struct {
	SchemaVersion int                `json:"schema_version"`
	SnapshotID    string             `json:"snapshot_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Documents     []snapshotDocument `json:"documents"`
	Indexes       []index.Config     `json:"indexes"`
	LastLSN       uint64             `json:"last_lsn"`
}

// CheckpointManager writes and loads snapshot_<id>.json files under a
// directory, keeping only the most recent few so the directory does not
// grow without bound.
type CheckpointManager struct {
	dir       string
	keepCount int
}

// NewCheckpointManager returns a manager rooted at dir, keeping the most
// recent keepCount snapshots (older ones are pruned after each Create).
func NewCheckpointManager(dir string, keepCount int) *CheckpointManager {
	if keepCount <= 0 {
		keepCount = 3
	}
	return &CheckpointManager{dir: dir, keepCount: keepCount}
}

// Create writes a new snapshot containing docs and indexes as of lastLSN,
// using an atomic temp-file-then-rename write, and returns its id.
func (cm *CheckpointManager) Create(docs []*Document, indexes []index.Config, lastLSN uint64) (string, error) {
	if err := os.MkdirAll(cm.dir, 0755); err != nil {
		return "", fmt.Errorf("checkpoint: create dir: %w", err)
	}

	snapshotID := uuid.NewString()
	snap := snapshotFile{
		SchemaVersion: snapshotSchemaVersion,
		SnapshotID:    snapshotID,
		Timestamp:     time.Now().UTC(),
		Documents:     make([]snapshotDocument, 0, len(docs)),
		Indexes:       indexes,
		LastLSN:       lastLSN,
	}
	for _, d := range docs {
		snap.Documents = append(snap.Documents, snapshotDocument{
			ID:        d.ID,
			Payload:   d.Payload,
			Version:   d.Version,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("checkpoint: marshal snapshot: %w", err)
	}

	finalPath := cm.pathFor(snapshotID)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("checkpoint: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("checkpoint: rename snapshot: %w", err)
	}

	cm.prune()
	return snapshotID, nil
}

// LoadLatest returns the most recently timestamped snapshot, or ok=false if
// the directory holds none.
func (cm *CheckpointManager) LoadLatest() (*snapshotFile, bool, error) {
	files, err := cm.listSnapshots()
	if err != nil {
		return nil, false, err
	}
	if len(files) == 0 {
		return nil, false, nil
	}

	var latest *snapshotFile
	for _, f := range files {
		snap, err := cm.readSnapshot(f)
		if err != nil {
			continue
		}
		if latest == nil || snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	return latest, true, nil
}

func (cm *CheckpointManager) pathFor(snapshotID string) string {
	return filepath.Join(cm.dir, fmt.Sprintf("snapshot_%s.json", snapshotID))
}

func (cm *CheckpointManager) readSnapshot(name string) (*snapshotFile, error) {
	data, err := os.ReadFile(filepath.Join(cm.dir, name))
	if err != nil {
		return nil, err
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (cm *CheckpointManager) listSnapshots() ([]string, error) {
	entries, err := os.ReadDir(cm.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "snapshot_") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// prune keeps only the keepCount most recently timestamped snapshots.
func (cm *CheckpointManager) prune() {
	names, err := cm.listSnapshots()
	if err != nil || len(names) <= cm.keepCount {
		return
	}

	type stamped struct {
		name string
		ts   time.Time
	}
	var all []stamped
	for _, n := range names {
		snap, err := cm.readSnapshot(n)
		if err != nil {
			continue
		}
		all = append(all, stamped{name: n, ts: snap.Timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.After(all[j].ts) })

	for i := cm.keepCount; i < len(all); i++ {
		os.Remove(filepath.Join(cm.dir, all[i].name))
	}
}
