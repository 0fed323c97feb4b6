// Package server provides HTTP routing, OAuth callback handling, and the
// local web app that streams migration progress over SSE.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. [BasicRouter] uses [http.ServeMux]
// internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback for CLI
// login flows. It validates the state parameter, exchanges the authorization
// code for tokens, and delivers the result through a channel. Only one
// callback is processed per handler.
//
// # Web App
//
// [App] is the `serve` mode: a local single-user web service exposing the
// extraction and transfer phases as Server-Sent Event streams, plus dual-role
// login endpoints so the source and destination accounts can be connected
// from a browser. One JSON-encoded migration event is written per SSE
// message.
package server
