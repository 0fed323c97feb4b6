// Package tasks implements the two-stage liked-songs migration pipeline.
//
// The core abstraction is [MigrationEngine], which orchestrates the two phases:
//
//  1. Extract walks the source library page by page and produces a
//     [models.Snapshot], the flat ordered track list persisted between phases.
//  2. Transfer replays a snapshot into the destination library. In ordered mode
//     tracks are inserted one at a time, oldest first, so the destination's
//     insertion-time ordering reproduces the source's chronological like order.
//
// Both phases emit [Event] values on a caller-supplied channel for real-time
// status reporting to CLI, TUI, or SSE consumers. Sends block until the
// consumer receives (or the context is cancelled), so a streaming consumer
// sees every event in arrival order.
//
// API calls are issued strictly sequentially; the only suspension points are
// rate-limit backoff (server-advertised Retry-After) and the inter-call pacing
// delays. Pacing uses [golang.org/x/time/rate] limiters and is configurable
// per run via [Opts], so tests can inject near-zero delays.
package tasks
