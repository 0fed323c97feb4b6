// package services defines interface LibraryService for interacting with HTTP APIs
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"golang.org/x/oauth2"
)

// LibraryService defines the interface for a streaming provider's saved-track
// library: paginated reads from the source account and single or batch writes
// into the destination account.
type LibraryService interface {
	// Authenticate performs OAuth or token authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// UserProfile retrieves the authenticated user's profile.
	UserProfile(ctx context.Context) (*models.UserProfile, error)

	// SavedTracks retrieves one page of the user's saved tracks.
	SavedTracks(ctx context.Context, limit, offset int) (*SavedTrackPage, error)

	// SaveTrack adds a single track to the user's library ("add now" semantics;
	// the server assigns the insertion timestamp).
	SaveTrack(ctx context.Context, trackID string) error

	// SaveTracks adds up to 50 tracks to the user's library in one call.
	// Relative insertion order within the batch is not guaranteed.
	SaveTracks(ctx context.Context, trackIDs []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends LibraryService for providers using OAuth2 authorization
// code flows, used by the CLI login command and the web server.
type OAuthService interface {
	LibraryService

	// GetAuthURL returns the authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 config for callback handling.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate authenticates with a previously issued token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// SavedTrackPage is one page of a paginated saved-tracks response.
type SavedTrackPage struct {
	Items  []SavedTrackItem
	Total  int
	Limit  int
	Offset int
}

// SavedTrackItem is a saved-track entry: the timestamp the track was liked
// plus the track itself. Track is nil for entries whose underlying track is
// unavailable (local uploads, region-locked content).
type SavedTrackItem struct {
	AddedAt string
	Track   *SpotifyTrack
}

// RateLimitError reports an HTTP 429 response and the server-advertised wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}
