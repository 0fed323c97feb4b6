package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
)

// RunRepository records transfer runs against snapshots.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run row at the start of a transfer.
func (r *RunRepository) Create(run *models.Run) error {
	if run == nil {
		return shared.ErrInvalidInput
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO runs (id, snapshot_id, ordered_mode, transferred, failed, total, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SnapshotID, run.Ordered, run.Transferred, run.Failed, run.Total, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Finish records the terminal counts of a run and stamps its completion time.
func (r *RunRepository) Finish(id string, transferred, failed int) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE runs
		SET transferred = ?, failed = ?, finished_at = ?
		WHERE id = ?
	`, transferred, failed, now, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	row := r.db.QueryRow(`
		SELECT id, snapshot_id, ordered_mode, transferred, failed, total, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)

	return scanRun(row.Scan)
}

// ListBySnapshot retrieves all runs for a snapshot, newest first.
func (r *RunRepository) ListBySnapshot(snapshotID string) ([]*models.Run, error) {
	rows, err := r.db.Query(`
		SELECT id, snapshot_id, ordered_mode, transferred, failed, total, started_at, finished_at
		FROM runs
		WHERE snapshot_id = ?
		ORDER BY started_at DESC, id DESC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scanRun scans a run row from either a [sql.Row] or [sql.Rows] scan func.
func scanRun(scan func(dest ...any) error) (*models.Run, error) {
	var (
		run        models.Run
		finishedAt sql.NullTime
	)

	err := scan(&run.ID, &run.SnapshotID, &run.Ordered, &run.Transferred, &run.Failed, &run.Total, &run.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	return &run, nil
}
