package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/likeshift/internal/server"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization flow for one account role.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// exchanges the auth code for tokens saved under the role's config section.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	role, err := shared.ParseRole(cmd.String("role"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	svc, err := r.serviceFor(role)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(svc, role)
	if err != nil {
		return err
	}

	if err := r.config.Credentials.ForRole(role).Update(token); err != nil {
		return fmt.Errorf("failed to store %s tokens: %w", role, err)
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ %s account authorized", role)
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)

	return nil
}

// AuthStatus shows the authentication state of both account roles.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	for _, role := range []shared.Role{shared.RoleSource, shared.RoleDest} {
		stored := r.config.Credentials.ForRole(role)
		if stored.Empty() {
			r.writePlain("%-6s ✗ Not authenticated\n", role)
			continue
		}

		svc, err := r.serviceFor(role)
		if err != nil {
			return err
		}
		if err := svc.OAuthenticate(ctx, stored.Token()); err != nil {
			r.writePlain("%-6s ✗ Stored token rejected: %v\n", role, err)
			continue
		}

		profile, err := svc.UserProfile(ctx)
		if err != nil {
			r.writePlain("%-6s ⚠ Token saved but profile fetch failed: %v\n", role, err)
			continue
		}
		r.writePlain("%-6s ✓ %s (%s)\n", role, profile.DisplayName, profile.ID)
	}

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(oauthSrv services.OAuthService, role shared.Role) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state, role)
	router := server.NewBasicRouter()
	router.Handle("GET", "/callback", oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s login at %v", role, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser to authorize the %s account...\n", role)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// handleAuthError triggers reauthorization when an operation fails on an
// expired token. Returns true when the caller should retry.
func (r *Runner) handleAuthError(ctx context.Context, err error, role shared.Role) (bool, error) {
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, shared.ErrTokenExpired) {
		return false, err
	}

	r.writePlainln("⚠ %s token expired. Starting reauthorization...", role)

	svc, svcErr := r.serviceFor(role)
	if svcErr != nil {
		return true, svcErr
	}

	token, authErr := r.doOAuth(svc, role)
	if authErr != nil {
		return true, fmt.Errorf("reauthorization failed: %w", authErr)
	}

	if err := r.config.Credentials.ForRole(role).Update(token); err != nil {
		return true, fmt.Errorf("failed to store %s tokens: %w", role, err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return true, fmt.Errorf("failed to save config: %w", err)
	}

	if err := svc.OAuthenticate(ctx, token); err != nil {
		return true, fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...")

	return true, nil
}
