package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
)

// SnapshotRepository stores library snapshots in SQLite.
//
// The track list lives in the snapshot_tracks child table, keyed by
// (snapshot_id, position), so Get returns tracks in exactly the order
// extraction produced them.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a snapshot and all of its tracks in a single transaction.
//
// A snapshot is immutable once written; there is no Update.
func (r *SnapshotRepository) Create(snapshot *models.Snapshot) error {
	if snapshot == nil {
		return shared.ErrInvalidInput
	}
	if snapshot.ID == "" {
		snapshot.ID = shared.GenerateID()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO snapshots (id, owner_id, owner_name, track_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, snapshot.ID, snapshot.OwnerID, snapshot.OwnerName, snapshot.Count(), snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_tracks (snapshot_id, position, track_id, name, artists, album, image_url, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for position, track := range snapshot.Tracks {
		_, err = stmt.Exec(snapshot.ID, position, track.ID, track.Name, track.Artists, track.Album, track.ImageURL, track.AddedAt)
		if err != nil {
			return fmt.Errorf("failed to insert track at position %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}

// Get retrieves a snapshot by ID including its full track list.
func (r *SnapshotRepository) Get(id string) (*models.Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT id, owner_id, owner_name, created_at
		FROM snapshots
		WHERE id = ?
	`, id)

	snapshot, err := r.scanSnapshot(row)
	if err != nil {
		return nil, err
	}

	snapshot.Tracks, err = r.loadTracks(snapshot.ID)
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Latest retrieves the most recently created snapshot including its tracks.
func (r *SnapshotRepository) Latest() (*models.Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT id, owner_id, owner_name, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)

	snapshot, err := r.scanSnapshot(row)
	if err != nil {
		return nil, err
	}

	snapshot.Tracks, err = r.loadTracks(snapshot.ID)
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// List retrieves snapshot metadata (no track lists), newest first.
func (r *SnapshotRepository) List() ([]*models.SnapshotSummary, error) {
	rows, err := r.db.Query(`
		SELECT id, owner_id, owner_name, track_count, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var summaries []*models.SnapshotSummary
	for rows.Next() {
		var s models.SnapshotSummary
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.OwnerName, &s.TrackCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return summaries, nil
}

// Delete removes a snapshot and its tracks.
func (r *SnapshotRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshot_tracks WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot tracks: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, id)
	}

	return tx.Commit()
}

// scanSnapshot scans a snapshot header row (without tracks).
func (r *SnapshotRepository) scanSnapshot(row *sql.Row) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	err := row.Scan(&snapshot.ID, &snapshot.OwnerID, &snapshot.OwnerName, &snapshot.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	return &snapshot, nil
}

// loadTracks loads a snapshot's tracks ordered by extraction position.
func (r *SnapshotRepository) loadTracks(snapshotID string) ([]models.TrackRecord, error) {
	rows, err := r.db.Query(`
		SELECT track_id, name, artists, album, image_url, added_at
		FROM snapshot_tracks
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.TrackRecord
	for rows.Next() {
		var t models.TrackRecord
		if err := rows.Scan(&t.ID, &t.Name, &t.Artists, &t.Album, &t.ImageURL, &t.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}
