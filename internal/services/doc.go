// Package services defines the [LibraryService] interface for a streaming
// provider's saved-track library and implements it for Spotify.
//
// # Library Service Interface
//
// [LibraryService] covers the three operations the migration pipeline needs:
// paginated reads of the saved-track library, single-item writes (ordered
// transfers), and batch writes (fast transfers).
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// A refresh callback lets callers persist rotated tokens back to configuration.
//
// Scopes depend on the account role: the source account reads its library
// (user-library-read), the destination account also writes to it
// (user-library-modify).
//
// # Rate Limiting
//
// The Spotify Web API signals rate limits with HTTP 429 and a Retry-After
// header. [SpotifyService] surfaces these as [*RateLimitError] so callers can
// back off for the advertised duration and retry; it never retries internally.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
package services
