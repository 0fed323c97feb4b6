package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/likeshift/internal/shared"
	"golang.org/x/oauth2"
)

// roundTripFunc adapts a function to http.RoundTripper so tests can script
// Spotify API responses without a network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string, headers map[string]string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return resp
}

func testCredentials() map[string]string {
	return map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
		"redirect_uri":  "http://127.0.0.1:8080/callback",
	}
}

// authedService returns a service whose HTTP traffic goes through fn.
func authedService(t *testing.T, role shared.Role, fn roundTripFunc) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(testCredentials(), role)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.token = &oauth2.Token{AccessToken: "test_access_token"}
	srv.httpClient = &http.Client{Transport: fn}
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("with valid credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials(), shared.RoleSource)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.Role() != shared.RoleSource {
				t.Errorf("expected source role, got %s", srv.Role())
			}
		})

		t.Run("missing client_id", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "s"}, shared.RoleSource)
			if err == nil {
				t.Error("expected error for missing client_id")
			}
		})

		t.Run("missing client_secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "c"}, shared.RoleSource)
			if err == nil {
				t.Error("expected error for missing client_secret")
			}
		})

		t.Run("default redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "c",
				"client_secret": "s",
			}, shared.RoleSource)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.RedirectURL != "http://127.0.0.1:8080/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})

		t.Run("source role omits write scope", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials(), shared.RoleSource)
			for _, scope := range srv.config.Scopes {
				if scope == "user-library-modify" {
					t.Error("source role should not request user-library-modify")
				}
			}
		})

		t.Run("dest role adds write scope", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials(), shared.RoleDest)
			found := false
			for _, scope := range srv.config.Scopes {
				if scope == "user-library-modify" {
					found = true
				}
			}
			if !found {
				t.Error("dest role should request user-library-modify")
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials(), shared.RoleDest)
		url := srv.GetAuthURL("state123")

		if !strings.Contains(url, "state=state123") {
			t.Errorf("expected state param, got %s", url)
		}
		if !strings.Contains(url, "show_dialog=true") {
			t.Errorf("expected show_dialog param, got %s", url)
		}
		if !strings.Contains(url, "accounts.spotify.com/authorize") {
			t.Errorf("expected Spotify auth endpoint, got %s", url)
		}
	})

	t.Run("OAuthenticate", func(t *testing.T) {
		t.Run("rejects nil token", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials(), shared.RoleSource)
			if err := srv.OAuthenticate(context.Background(), nil); !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})

		t.Run("rejects empty access token", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials(), shared.RoleSource)
			err := srv.OAuthenticate(context.Background(), &oauth2.Token{})
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})

		t.Run("stores token and builds client", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials(), shared.RoleSource)
			token := &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}
			if err := srv.OAuthenticate(context.Background(), token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.token != token {
				t.Error("expected token to be stored")
			}
			if srv.httpClient == http.DefaultClient {
				t.Error("expected an oauth2 client to replace the default")
			}
		})
	})

	t.Run("doRequest", func(t *testing.T) {
		t.Run("requires authentication", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials(), shared.RoleSource)
			_, err := srv.SavedTracks(context.Background(), 50, 0)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("429 becomes RateLimitError with Retry-After", func(t *testing.T) {
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, "", map[string]string{"Retry-After": "5"}), nil
			})

			_, err := srv.SavedTracks(context.Background(), 50, 0)

			var rl *RateLimitError
			if !errors.As(err, &rl) {
				t.Fatalf("expected RateLimitError, got %v", err)
			}
			if rl.RetryAfter != 5*time.Second {
				t.Errorf("expected 5s retry-after, got %s", rl.RetryAfter)
			}
		})

		t.Run("429 without header uses default wait", func(t *testing.T) {
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, "", nil), nil
			})

			_, err := srv.SavedTracks(context.Background(), 50, 0)

			var rl *RateLimitError
			if !errors.As(err, &rl) {
				t.Fatalf("expected RateLimitError, got %v", err)
			}
			if rl.RetryAfter != defaultRetryAfter {
				t.Errorf("expected default retry-after, got %s", rl.RetryAfter)
			}
		})

		t.Run("429 with malformed header uses default wait", func(t *testing.T) {
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, "", map[string]string{"Retry-After": "soon"}), nil
			})

			_, err := srv.SavedTracks(context.Background(), 50, 0)

			var rl *RateLimitError
			if !errors.As(err, &rl) {
				t.Fatalf("expected RateLimitError, got %v", err)
			}
			if rl.RetryAfter != defaultRetryAfter {
				t.Errorf("expected default retry-after, got %s", rl.RetryAfter)
			}
		})

		t.Run("401 becomes ErrTokenExpired", func(t *testing.T) {
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnauthorized, "", nil), nil
			})

			_, err := srv.SavedTracks(context.Background(), 50, 0)
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})

		t.Run("other failures become ErrAPIRequest", func(t *testing.T) {
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadGateway, "", nil), nil
			})

			_, err := srv.SavedTracks(context.Background(), 50, 0)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("sends bearer token", func(t *testing.T) {
			var auth string
			srv := authedService(t, shared.RoleSource, func(req *http.Request) (*http.Response, error) {
				auth = req.Header.Get("Authorization")
				return jsonResponse(http.StatusOK, `{"items":[],"total":0}`, nil), nil
			})

			if _, err := srv.SavedTracks(context.Background(), 50, 0); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if auth != "Bearer test_access_token" {
				t.Errorf("expected bearer header, got %q", auth)
			}
		})
	})

	t.Run("SavedTracks", func(t *testing.T) {
		t.Run("decodes a page", func(t *testing.T) {
			body := `{
				"items": [
					{"added_at": "2024-06-01T00:00:00Z", "track": {"id": "t1", "name": "Song One", "artists": [{"name": "Artist A"}, {"name": "Artist B"}], "album": {"name": "Album"}}},
					{"added_at": "2024-05-01T00:00:00Z", "track": null}
				],
				"total": 2,
				"limit": 50,
				"offset": 0
			}`
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, body, nil), nil
			})

			page, err := srv.SavedTracks(context.Background(), 50, 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if page.Total != 2 {
				t.Errorf("expected total 2, got %d", page.Total)
			}
			if len(page.Items) != 2 {
				t.Fatalf("expected 2 items, got %d", len(page.Items))
			}
			if page.Items[0].Track == nil || page.Items[0].Track.ID != "t1" {
				t.Errorf("expected first track t1, got %+v", page.Items[0].Track)
			}
			// Entries with unavailable tracks come through as nil for the
			// caller to skip.
			if page.Items[1].Track != nil {
				t.Error("expected nil track for unavailable entry")
			}
		})

		t.Run("clamps the page size", func(t *testing.T) {
			var query string
			srv := authedService(t, shared.RoleSource, func(req *http.Request) (*http.Response, error) {
				query = req.URL.RawQuery
				return jsonResponse(http.StatusOK, `{"items":[],"total":0}`, nil), nil
			})

			if _, err := srv.SavedTracks(context.Background(), 500, 100); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(query, "limit=50") || !strings.Contains(query, "offset=100") {
				t.Errorf("expected clamped limit and offset, got %q", query)
			}

			if _, err := srv.SavedTracks(context.Background(), 0, 0); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(query, "limit=20") {
				t.Errorf("expected fallback limit, got %q", query)
			}
		})
	})

	t.Run("SaveTrack", func(t *testing.T) {
		t.Run("puts a single id", func(t *testing.T) {
			var method, path, body string
			srv := authedService(t, shared.RoleDest, func(req *http.Request) (*http.Response, error) {
				method = req.Method
				path = req.URL.Path
				payload, _ := io.ReadAll(req.Body)
				body = string(payload)
				return jsonResponse(http.StatusOK, "", nil), nil
			})

			if err := srv.SaveTrack(context.Background(), "track123"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if method != http.MethodPut {
				t.Errorf("expected PUT, got %s", method)
			}
			if path != "/v1/me/tracks" {
				t.Errorf("expected /v1/me/tracks, got %s", path)
			}
			if !strings.Contains(body, `"ids":["track123"]`) {
				t.Errorf("expected ids payload, got %s", body)
			}
		})

		t.Run("rejects empty id", func(t *testing.T) {
			srv := authedService(t, shared.RoleDest, nil)
			if err := srv.SaveTrack(context.Background(), ""); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("SaveTracks", func(t *testing.T) {
		t.Run("puts all ids in one call", func(t *testing.T) {
			var body string
			srv := authedService(t, shared.RoleDest, func(req *http.Request) (*http.Response, error) {
				payload, _ := io.ReadAll(req.Body)
				body = string(payload)
				return jsonResponse(http.StatusOK, "", nil), nil
			})

			if err := srv.SaveTracks(context.Background(), []string{"a", "b", "c"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(body, `"ids":["a","b","c"]`) {
				t.Errorf("expected ids payload, got %s", body)
			}
		})

		t.Run("rejects empty list", func(t *testing.T) {
			srv := authedService(t, shared.RoleDest, nil)
			if err := srv.SaveTracks(context.Background(), nil); err == nil {
				t.Error("expected error for empty list")
			}
		})

		t.Run("rejects more than 50 ids", func(t *testing.T) {
			srv := authedService(t, shared.RoleDest, nil)
			ids := make([]string, 51)
			for i := range ids {
				ids[i] = "id"
			}
			if err := srv.SaveTracks(context.Background(), ids); err == nil {
				t.Error("expected error for oversized batch")
			}
		})
	})

	t.Run("UserProfile", func(t *testing.T) {
		t.Run("maps profile fields", func(t *testing.T) {
			body := `{"id": "user1", "display_name": "Test User", "images": [{"url": "https://img.example/1"}]}`
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, body, nil), nil
			})

			profile, err := srv.UserProfile(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if profile.ID != "user1" || profile.DisplayName != "Test User" {
				t.Errorf("unexpected profile %+v", profile)
			}
			if profile.ImageURL != "https://img.example/1" {
				t.Errorf("expected image URL, got %s", profile.ImageURL)
			}
		})

		t.Run("falls back to id when display name is empty", func(t *testing.T) {
			srv := authedService(t, shared.RoleSource, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"id": "user1"}`, nil), nil
			})

			profile, err := srv.UserProfile(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if profile.DisplayName != "user1" {
				t.Errorf("expected id fallback, got %s", profile.DisplayName)
			}
		})
	})
}

func TestDisplayArtists(t *testing.T) {
	t.Run("joins artist names", func(t *testing.T) {
		track := &SpotifyTrack{Artists: []SpotifyArtist{{Name: "A"}, {Name: "B"}}}
		if got := DisplayArtists(track); got != "A, B" {
			t.Errorf("expected 'A, B', got %q", got)
		}
	})

	t.Run("handles nil and empty", func(t *testing.T) {
		if got := DisplayArtists(nil); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
		if got := DisplayArtists(&SpotifyTrack{}); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestCoverImage(t *testing.T) {
	track := &SpotifyTrack{Album: SpotifyAlbum{Images: []SpotifyImage{{URL: "https://img.example/cover"}}}}
	if got := CoverImage(track); got != "https://img.example/cover" {
		t.Errorf("expected cover URL, got %q", got)
	}
	if got := CoverImage(nil); got != "" {
		t.Errorf("expected empty string for nil track, got %q", got)
	}
}

func TestRefreshableTokenSource(t *testing.T) {
	// staticTokenSource returns the scripted tokens in order.
	tokens := []*oauth2.Token{
		{AccessToken: "first"},
		{AccessToken: "first"},
		{AccessToken: "second"},
	}
	idx := 0
	source := oauth2.TokenSource(tokenSourceFunc(func() (*oauth2.Token, error) {
		tok := tokens[min(idx, len(tokens)-1)]
		idx++
		return tok, nil
	}))

	var seen []string
	rts := &refreshableTokenSource{
		source: source,
		callback: func(tok *oauth2.Token) {
			seen = append(seen, tok.AccessToken)
		},
	}

	for range 3 {
		if _, err := rts.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	// Callback fires on first issue and on rotation, not on repeats.
	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Errorf("expected callbacks [first second], got %v", seen)
	}

	t.Run("nil callback is safe", func(t *testing.T) {
		rts := &refreshableTokenSource{
			source: tokenSourceFunc(func() (*oauth2.Token, error) {
				return &oauth2.Token{AccessToken: "x"}, nil
			}),
		}
		if _, err := rts.Token(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		rts := &refreshableTokenSource{
			source: tokenSourceFunc(func() (*oauth2.Token, error) {
				return nil, errors.New("refresh failed")
			}),
		}
		if _, err := rts.Token(); err == nil {
			t.Error("expected error from source")
		}
	})
}

// tokenSourceFunc adapts a function to oauth2.TokenSource.
type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) {
	return f()
}
