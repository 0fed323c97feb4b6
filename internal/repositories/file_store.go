package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
)

// FileSnapshotStore reads and writes snapshots as standalone JSON files.
//
// The file is the portable form of a snapshot: extract on one machine, carry
// the file over, transfer on another. Writes go through a temp file and
// rename so a crash never leaves a half-written snapshot behind.
type FileSnapshotStore struct{}

// NewFileSnapshotStore creates a new FileSnapshotStore
func NewFileSnapshotStore() *FileSnapshotStore {
	return &FileSnapshotStore{}
}

// Save writes a snapshot to path as pretty-printed JSON.
func (s *FileSnapshotStore) Save(snapshot *models.Snapshot, path string) error {
	if snapshot == nil {
		return shared.ErrInvalidInput
	}

	data, err := shared.MarshalJSON(snapshot, true)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	return nil
}

// Load reads a snapshot from path. A missing file maps to
// [shared.ErrSnapshotNotFound].
func (s *FileSnapshotStore) Load(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	return &snapshot, nil
}
