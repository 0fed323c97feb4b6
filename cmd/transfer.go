package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/repositories"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/desertthunder/likeshift/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Transfer replays a snapshot into the destination account's liked songs.
//
// Ordered mode is the default: tracks are inserted one at a time, oldest
// first, so the destination's like order matches the source's. The --batched
// flag trades that ordering for speed.
func (r *Runner) Transfer(ctx context.Context, cmd *cli.Command) error {
	snapshotID := cmd.String("snapshot")
	filePath := cmd.String("file")
	ordered := !cmd.Bool("batched")

	if snapshotID != "" && filePath != "" {
		return fmt.Errorf("%w: cannot specify both --snapshot and --file", shared.ErrInvalidArgument)
	}

	snapshot, err := r.loadSnapshot(snapshotID, filePath)
	if err != nil {
		return err
	}
	if snapshot.Count() == 0 {
		return fmt.Errorf("%w: snapshot %s has no tracks", shared.ErrEmptySnapshot, snapshot.ID)
	}

	svc, err := r.authenticatedService(ctx, shared.RoleDest)
	if err != nil {
		return err
	}

	r.logger.Info("starting transfer",
		"snapshot", snapshot.ID,
		"tracks", snapshot.Count(),
		"ordered", ordered,
	)
	r.writePlain("Transferring %d tracks", snapshot.Count())
	if ordered {
		r.writePlain(" in original like order")
	}
	r.writePlain("...\n")

	runs, err := r.runRepo()
	if err != nil {
		return err
	}
	run := &models.Run{
		SnapshotID: snapshot.ID,
		Ordered:    ordered,
		Total:      snapshot.Count(),
		StartedAt:  time.Now().UTC(),
	}
	if err := runs.Create(run); err != nil {
		r.logger.Warn("failed to record run", "error", err)
	}

	result, err := r.runTransfer(ctx, svc, snapshot, ordered)
	if err != nil {
		if retry, authErr := r.handleAuthError(ctx, err, shared.RoleDest); retry {
			if authErr != nil {
				return authErr
			}
			if result, err = r.runTransfer(ctx, svc, snapshot, ordered); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	if err := runs.Finish(run.ID, result.Transferred, result.Failed); err != nil {
		r.logger.Warn("failed to finalize run", "error", err)
	}

	if result.Failed > 0 {
		r.writePlain("⚠ %d tracks could not be transferred\n", result.Failed)
	}

	return nil
}

// runTransfer runs one transfer pass with console event reporting.
func (r *Runner) runTransfer(ctx context.Context, svc services.LibraryService, snapshot *models.Snapshot, ordered bool) (*tasks.TransferResult, error) {
	events := make(chan tasks.Event, 64)
	done := r.reportEvents(events, true)

	result, err := r.engine.Transfer(ctx, svc, snapshot, ordered, events)
	close(events)
	<-done

	return result, err
}

// loadSnapshot resolves the transfer input: a snapshot file, an explicit
// stored snapshot, or the most recent one.
func (r *Runner) loadSnapshot(snapshotID, filePath string) (*models.Snapshot, error) {
	if filePath != "" {
		return repositories.NewFileSnapshotStore().Load(filePath)
	}

	repo, err := r.snapshotRepo()
	if err != nil {
		return nil, err
	}

	if snapshotID != "" {
		return repo.Get(snapshotID)
	}

	snapshot, err := repo.Latest()
	if err != nil {
		return nil, fmt.Errorf("%w: run 'likeshift extract' first", shared.ErrSnapshotNotFound)
	}
	return snapshot, nil
}
