package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/likeshift/internal/server"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve starts the local web app with SSE progress streams.
//
// Stored tokens are applied on startup when present; either account can also
// be connected from the browser via the login endpoints.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	svcs := map[shared.Role]services.OAuthService{}
	for _, role := range []shared.Role{shared.RoleSource, shared.RoleDest} {
		svc, err := r.serviceFor(role)
		if err != nil {
			return err
		}
		if stored := r.config.Credentials.ForRole(role); !stored.Empty() {
			if err := svc.OAuthenticate(ctx, stored.Token()); err != nil {
				r.logger.Warn("stored token rejected", "role", role, "error", err)
			}
		}
		svcs[role] = svc
	}

	snapshots, err := r.snapshotRepo()
	if err != nil {
		return err
	}
	runs, err := r.runRepo()
	if err != nil {
		return err
	}

	app := server.NewApp(r.config, r.configPath, svcs, snapshots, runs, r.logger)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: app.Router(),
	}

	r.logger.Info("starting web app", "addr", addr)
	r.writePlain("Serving on http://%s\n", addr)
	r.writePlain("  GET  /status           auth and snapshot state\n")
	r.writePlain("  GET  /auth/source      connect the account to copy from\n")
	r.writePlain("  GET  /auth/dest        connect the account to copy into\n")
	r.writePlain("  GET  /extract/stream   run extraction (SSE)\n")
	r.writePlain("  GET  /transfer/stream  run transfer (SSE)\n")

	errs := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}
