package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/repositories"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/desertthunder/likeshift/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Extract walks the source account's liked songs and persists the snapshot.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	outputFile := cmd.String("output")

	svc, err := r.authenticatedService(ctx, shared.RoleSource)
	if err != nil {
		return err
	}

	repo, err := r.snapshotRepo()
	if err != nil {
		return err
	}

	r.logger.Info("starting extraction", "service", svc.Name())

	snapshot, err := r.runExtract(ctx, svc)
	if err != nil {
		if retry, authErr := r.handleAuthError(ctx, err, shared.RoleSource); retry {
			if authErr != nil {
				return authErr
			}
			if snapshot, err = r.runExtract(ctx, svc); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	profile, err := svc.UserProfile(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch owner profile", "error", err)
	} else {
		snapshot.OwnerID = profile.ID
		snapshot.OwnerName = profile.DisplayName
	}

	if err := repo.Create(snapshot); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	r.writePlain("✓ Snapshot %s saved (%d tracks)\n", snapshot.ID, snapshot.Count())

	if outputFile != "" {
		store := repositories.NewFileSnapshotStore()
		if err := store.Save(snapshot, outputFile); err != nil {
			return fmt.Errorf("failed to write snapshot file: %w", err)
		}
		r.writePlain("✓ Snapshot written to %s\n", outputFile)
	}

	return nil
}

// runExtract runs one extraction pass with console event reporting.
func (r *Runner) runExtract(ctx context.Context, svc services.LibraryService) (*models.Snapshot, error) {
	events := make(chan tasks.Event, 64)
	done := r.reportEvents(events, false)

	snapshot, err := r.engine.Extract(ctx, svc, events)
	close(events)
	<-done

	return snapshot, err
}
