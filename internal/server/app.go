package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/repositories"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/desertthunder/likeshift/internal/tasks"
)

// App is the local web service behind the `serve` command.
//
// It is single-user by construction: one pending migration at a time, with
// the most recent extraction held in memory (and persisted to the snapshot
// repository) until reset. Browser clients connect both accounts through the
// login endpoints and consume migration progress from the SSE streams.
type App struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	engine     *tasks.MigrationEngine
	snapshots  *repositories.SnapshotRepository
	runs       *repositories.RunRepository
	services   map[shared.Role]services.OAuthService

	mu      sync.Mutex
	states  map[string]shared.Role
	current *models.Snapshot
}

// NewApp creates the web app with its collaborators.
//
// configPath may be empty, in which case freshly issued tokens are kept in
// memory only.
func NewApp(
	config *shared.Config,
	configPath string,
	svcs map[shared.Role]services.OAuthService,
	snapshots *repositories.SnapshotRepository,
	runs *repositories.RunRepository,
	logger *log.Logger,
) *App {
	return &App{
		config:     config,
		configPath: configPath,
		logger:     logger,
		engine:     tasks.NewMigrationEngine(tasks.OptsFromConfig(config.Transfer)),
		snapshots:  snapshots,
		runs:       runs,
		services:   svcs,
		states:     map[string]shared.Role{},
	}
}

// Router builds the app's route table.
func (a *App) Router() *BasicRouter {
	r := NewBasicRouter()
	r.Use(LogRequests(a.logger))

	r.Handle("GET", "/status", http.HandlerFunc(a.handleStatus))
	r.Handle("GET", "/auth/", http.HandlerFunc(a.handleLogin))
	r.Handle("GET", "/callback", http.HandlerFunc(a.handleCallback))
	r.Handle("GET", "/extract/stream", http.HandlerFunc(a.handleExtractStream))
	r.Handle("GET", "/transfer/stream", http.HandlerFunc(a.handleTransferStream))
	r.Handle("GET", "/snapshots", http.HandlerFunc(a.handleSnapshots))
	r.Handle("POST", "/reset", http.HandlerFunc(a.handleReset))

	return r
}

// roleStatus is one account's section of the status response.
type roleStatus struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
}

// statusResponse reports auth state for both roles and the pending snapshot.
type statusResponse struct {
	Source   roleStatus              `json:"source"`
	Dest     roleStatus              `json:"dest"`
	Snapshot *models.SnapshotSummary `json:"snapshot,omitempty"`
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	resp.Source = a.statusForRole(r, shared.RoleSource)
	resp.Dest = a.statusForRole(r, shared.RoleDest)

	a.mu.Lock()
	if a.current != nil {
		resp.Snapshot = &models.SnapshotSummary{
			ID:         a.current.ID,
			OwnerID:    a.current.OwnerID,
			OwnerName:  a.current.OwnerName,
			TrackCount: a.current.Count(),
			CreatedAt:  a.current.CreatedAt,
		}
	}
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) statusForRole(r *http.Request, role shared.Role) roleStatus {
	if a.config.Credentials.ForRole(role).Empty() {
		return roleStatus{}
	}

	status := roleStatus{Authenticated: true}
	if svc, ok := a.services[role]; ok {
		if profile, err := svc.UserProfile(r.Context()); err == nil {
			status.User = profile.DisplayName
		}
	}
	return status
}

// handleLogin redirects the browser to the provider's consent page for the
// role named in the path (/auth/source or /auth/dest).
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	role, err := shared.ParseRole(strings.TrimPrefix(r.URL.Path, "/auth/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	svc, ok := a.services[role]
	if !ok {
		http.Error(w, "service not configured", http.StatusServiceUnavailable)
		return
	}

	nonce, err := shared.GenerateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	state := string(role) + ":" + nonce

	a.mu.Lock()
	a.states[state] = role
	a.mu.Unlock()

	http.Redirect(w, r, svc.GetAuthURL(state), http.StatusFound)
}

// handleCallback completes the authorization code flow for whichever role the
// state parameter was issued to, persisting the new tokens.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	a.mu.Lock()
	role, ok := a.states[state]
	if ok {
		delete(a.states, state)
	}
	a.mu.Unlock()

	if !ok {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	svc := a.services[role]
	token, err := svc.GetOAuthConfig().Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("token exchange failed", "role", role, "error", err)
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	if err := svc.OAuthenticate(r.Context(), token); err != nil {
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	if err := a.config.Credentials.ForRole(role).Update(token); err != nil {
		http.Error(w, "Invalid token", http.StatusInternalServerError)
		return
	}
	if a.configPath != "" {
		if err := shared.SaveConfig(a.configPath, a.config); err != nil {
			a.logger.Warn("failed to persist tokens", "error", err)
		}
	}

	a.logger.Info("account connected", "role", role)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	writeSuccessPage(w, role)
}

func (a *App) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.snapshots.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleReset discards the pending snapshot so a fresh extraction can start.
func (a *App) handleReset(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintln(w, string(data))
}
