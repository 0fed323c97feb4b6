// Spotify API implementation of [LibraryService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Retry-After fallback when the header is missing or unparseable.
	defaultRetryAfter = 30 * time.Second
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifySavedTrack represents a track saved in the user's library.
//
// Track is a pointer: the API returns null for entries whose underlying track
// is unavailable.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// roleScopes returns the OAuth scopes required for an account role.
func roleScopes(role shared.Role) []string {
	scopes := []string{"user-read-private", "user-library-read"}
	if role == shared.RoleDest {
		scopes = append(scopes, "user-library-modify")
	}
	return scopes
}

// SpotifyService implements the LibraryService interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for saved-track operations.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	role           shared.Role
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service for the given account role
// with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, role shared.Role) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       roleScopes(role),
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		role:        role,
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{AccessToken: accessToken})
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate authenticates with a previously issued [oauth2.Token].
//
// The underlying client refreshes expired tokens automatically; the refresh
// callback (if set) is invoked whenever a new access token is issued.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Role returns the account role this service instance was built for.
func (s *SpotifyService) Role() shared.Role {
	return s.role
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
//
// show_dialog forces the account chooser so a user can log into two different
// accounts from the same browser session.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

// GetOAuthConfig exposes the OAuth2 config for callback handling.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers a callback invoked when the token source
// issues a new access token, so callers can persist it.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// 429 responses become [*RateLimitError] carrying the Retry-After duration;
// 401 responses become [shared.ErrTokenExpired].
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := spotifyBaseURL + endpoint

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status 401", shared.ErrTokenExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// retryAfter parses the Retry-After header, falling back to the default wait.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*models.UserProfile, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
	}
	if profile.DisplayName == "" {
		profile.DisplayName = user.ID
	}
	if len(user.Images) > 0 {
		profile.ImageURL = user.Images[0].URL
	}

	return profile, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SavedTrackPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	page := &SavedTrackPage{
		Total:  response.Total,
		Limit:  response.Limit,
		Offset: response.Offset,
		Items:  make([]SavedTrackItem, 0, len(response.Items)),
	}
	for _, item := range response.Items {
		page.Items = append(page.Items, SavedTrackItem{
			AddedAt: item.AddedAt,
			Track:   item.Track,
		})
	}

	return page, nil
}

// SaveTrack adds a single track to the user's library.
func (s *SpotifyService) SaveTrack(ctx context.Context, trackID string) error {
	if trackID == "" {
		return fmt.Errorf("%w: empty track ID", shared.ErrInvalidArgument)
	}
	return s.saveIDs(ctx, []string{trackID})
}

// SaveTracks adds up to 50 tracks to the user's library in one call.
func (s *SpotifyService) SaveTracks(ctx context.Context, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return fmt.Errorf("no track IDs provided")
	}
	if len(trackIDs) > 50 {
		return fmt.Errorf("maximum 50 track IDs allowed")
	}
	return s.saveIDs(ctx, trackIDs)
}

func (s *SpotifyService) saveIDs(ctx context.Context, ids []string) error {
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}

	return s.doRequest(ctx, http.MethodPut, "/me/tracks", body, nil)
}

// DisplayArtists flattens a track's artist list into a single display string.
func DisplayArtists(track *SpotifyTrack) string {
	if track == nil || len(track.Artists) == 0 {
		return ""
	}
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// CoverImage returns the first album image URL, or empty when the album has none.
func CoverImage(track *SpotifyTrack) string {
	if track == nil || len(track.Album.Images) == 0 {
		return ""
	}
	return track.Album.Images[0].URL
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and invokes a callback
// whenever the access token changes, so rotated tokens can be persisted.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	lastSeen string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.lastSeen
	r.lastSeen = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		func() {
			defer func() { _ = recover() }()
			r.callback(token)
		}()
	}

	return token, nil
}
