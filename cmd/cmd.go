// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for config and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config file, initialize database, and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles account authentication for both roles.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage account authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authenticate an account role with OAuth2",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "Account role to authenticate (source or dest)",
						Value:   "source",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show authentication state for both account roles",
				Action: r.AuthStatus,
			},
		},
	}
}

// extractCommand captures the source account's liked songs into a snapshot.
func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Fetch the source account's liked songs into a snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Also write the snapshot to a JSON file",
			},
		},
		Action: r.Extract,
	}
}

// transferCommand replays a snapshot into the destination account.
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Replay a snapshot into the destination account's liked songs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "Snapshot ID to transfer (default: most recent)",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Transfer from a snapshot JSON file instead of the database",
			},
			&cli.BoolFlag{
				Name:  "batched",
				Usage: "Insert in batches of 50 (faster, does not preserve like order)",
			},
		},
		Action: r.Transfer,
	}
}

// snapshotsCommand manages stored snapshots.
func snapshotsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "snapshots",
		Aliases: []string{"snap"},
		Usage:   "Manage stored library snapshots",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored snapshots",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SnapshotsList,
			},
			{
				Name:  "show",
				Usage: "Show a snapshot and its tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks to print",
						Value: 20,
					},
				},
				Action: r.SnapshotsShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a stored snapshot",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SnapshotsDelete,
			},
		},
	}
}

// exportCommand writes a snapshot to CSV, Markdown, text, or JSON.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a snapshot to a file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Export format: json, csv, markdown, or text",
				Value: "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path (defaults derive from the snapshot ID)",
			},
		},
		Action: r.Export,
	}
}

// serveCommand starts the local web app.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the local web app with SSE progress streams",
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive migration.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for liked-songs migration",
		Action:  r.TUI,
	}
}
