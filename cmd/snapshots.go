package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/likeshift/internal/formatter"
	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/repositories"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/urfave/cli/v3"
)

// SnapshotsList prints stored snapshots, newest first.
func (r *Runner) SnapshotsList(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	repo, err := r.snapshotRepo()
	if err != nil {
		return err
	}

	summaries, err := repo.List()
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(summaries, true)
	}

	if len(summaries) == 0 {
		r.writePlain("No snapshots stored. Run 'likeshift extract' to create one.\n")
		return nil
	}

	r.writePlain("Found %d snapshots:\n\n", len(summaries))
	for i, s := range summaries {
		r.writePlain("%d. %s\n", i+1, s.ID)
		if s.OwnerName != "" {
			r.writePlain("   Owner: %s\n", s.OwnerName)
		}
		r.writePlain("   Tracks: %d\n", s.TrackCount)
		r.writePlain("   Captured: %s\n\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

// SnapshotsShow prints one snapshot with a track listing.
func (r *Runner) SnapshotsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	useJSON := cmd.Bool("json")
	limit := cmd.Int("limit")

	if id == "" {
		return fmt.Errorf("%w: snapshot id required", shared.ErrMissingArgument)
	}

	repo, err := r.snapshotRepo()
	if err != nil {
		return err
	}

	snapshot, err := repo.Get(id)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(snapshot, true)
	}

	r.writePlain("Snapshot: %s\n", snapshot.ID)
	if snapshot.OwnerName != "" {
		r.writePlain("Owner: %s\n", snapshot.OwnerName)
	}
	r.writePlain("Captured: %s\n", snapshot.CreatedAt.Format("2006-01-02 15:04:05"))
	r.writePlain("Tracks: %d\n\n", snapshot.Count())

	shown := snapshot.Tracks
	if limit > 0 && int(limit) < len(shown) {
		shown = shown[:limit]
	}
	for i, track := range shown {
		r.writePlain("%d. %s - %s\n", i+1, track.Artists, track.Name)
		if track.Album != "" {
			r.writePlain("   Album: %s\n", track.Album)
		}
		r.writePlain("   Liked: %s\n", track.AddedAt)
	}
	if len(shown) < snapshot.Count() {
		r.writePlain("\n... and %d more (use --limit 0 to show all)\n", snapshot.Count()-len(shown))
	}

	return nil
}

// SnapshotsDelete removes a stored snapshot.
func (r *Runner) SnapshotsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: snapshot id required", shared.ErrMissingArgument)
	}

	repo, err := r.snapshotRepo()
	if err != nil {
		return err
	}

	if err := repo.Delete(id); err != nil {
		return err
	}

	r.writePlain("✓ Snapshot %s deleted\n", id)
	return nil
}

// Export writes a snapshot to the requested format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")

	repo, err := r.snapshotRepo()
	if err != nil {
		return err
	}

	target, err := func() (*models.Snapshot, error) {
		if id == "" {
			return repo.Latest()
		}
		return repo.Get(id)
	}()
	if err != nil {
		return err
	}

	switch format {
	case "json":
		if output == "" {
			output = fmt.Sprintf("%s.json", target.ID)
		}
		if err := repositories.NewFileSnapshotStore().Save(target, output); err != nil {
			return err
		}
		r.writePlain("✓ Snapshot exported to %s\n", output)

	case "csv":
		result, err := formatter.WriteCSVExport(target, strings.TrimSuffix(output, ".csv"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Tracks exported to %s\n", result.TracksFile)
		r.writePlain("✓ Metadata exported to %s\n", result.MetadataFile)

	case "markdown", "md":
		path, err := formatter.WriteMarkdownExport(target, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Snapshot exported to %s\n", path)

	case "text", "txt":
		path, err := formatter.WriteTextExport(target, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Snapshot exported to %s\n", path)

	default:
		return fmt.Errorf("%w: unknown format %q (expected json, csv, markdown, or text)", shared.ErrInvalidFlag, format)
	}

	return nil
}
