package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likeshift/internal/repositories"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/desertthunder/likeshift/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.OAuthService
	dest       services.OAuthService
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.MigrationEngine
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     services.OAuthService
	Dest       services.OAuthService
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		dest:       opts.Dest,
		logger:     opts.Logger,
		output:     opts.Output,
		engine:     tasks.NewMigrationEngine(tasks.OptsFromConfig(opts.Config.Transfer)),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, extractCommand, transferCommand, snapshotsCommand, exportCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// database lazily opens the configured SQLite database and applies pending
// migrations. The connection is shared across a command invocation.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	return db, nil
}

// snapshotRepo returns a snapshot repository over the shared database.
func (r *Runner) snapshotRepo() (*repositories.SnapshotRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewSnapshotRepository(db), nil
}

// runRepo returns a run repository over the shared database.
func (r *Runner) runRepo() (*repositories.RunRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewRunRepository(db), nil
}

// serviceFor returns the service instance for a role, constructing one from
// config credentials when none was injected.
func (r *Runner) serviceFor(role shared.Role) (services.OAuthService, error) {
	switch role {
	case shared.RoleSource:
		if r.source != nil {
			return r.source, nil
		}
	case shared.RoleDest:
		if r.dest != nil {
			return r.dest, nil
		}
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := services.NewSpotifyService(creds.Map(), role)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	// Persist rotated access tokens so the next invocation skips re-auth.
	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.config.Credentials.ForRole(role).Update(token); err != nil {
			return
		}
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			r.logger.Warn("failed to persist refreshed token", "role", role, "error", err)
		}
	})

	if role == shared.RoleSource {
		r.source = svc
	} else {
		r.dest = svc
	}
	return svc, nil
}

// authenticatedService returns the service for a role with its stored token
// applied, or ErrNotAuthenticated when no token has been saved yet.
func (r *Runner) authenticatedService(ctx context.Context, role shared.Role) (services.OAuthService, error) {
	svc, err := r.serviceFor(role)
	if err != nil {
		return nil, err
	}

	stored := r.config.Credentials.ForRole(role)
	if stored.Empty() {
		return nil, fmt.Errorf("%w: run 'likeshift auth login --role %s' first", shared.ErrNotAuthenticated, role)
	}

	if err := svc.OAuthenticate(ctx, stored.Token()); err != nil {
		return nil, fmt.Errorf("failed to apply stored token: %w", err)
	}
	return svc, nil
}

// reportEvents consumes migration events and renders them to the output
// writer. transferring selects the transfer-phase wording for progress and
// completion lines. Returns a channel closed when the event stream ends.
func (r *Runner) reportEvents(events <-chan tasks.Event, transferring bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case tasks.EventTotal:
				r.writePlain("Found %d liked tracks\n", ev.Total)
			case tasks.EventTrack:
				if ev.Track != nil {
					r.logger.Debug("fetched track", "name", ev.Track.Name, "added_at", ev.Track.AddedAt)
				}
			case tasks.EventProgress:
				if transferring {
					r.writePlain("  %d/%d transferred (%d%%)\n", ev.Transferred, ev.Total, ev.Percent)
				} else {
					r.writePlain("  %d/%d fetched\n", ev.Fetched, ev.Total)
				}
			case tasks.EventRateLimit:
				r.writePlain("⚠ Rate limited, waiting %ds...\n", ev.RetryAfter)
			case tasks.EventError:
				r.writePlain("✗ %s: %s\n", ev.Context, ev.Message)
			case tasks.EventComplete:
				if transferring {
					r.writePlain("✓ Transfer complete: %d/%d tracks\n", ev.Transferred, ev.Total)
				} else {
					r.writePlain("✓ Extraction complete: %d tracks\n", ev.Count)
				}
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
