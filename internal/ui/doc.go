// Package ui implements the interactive terminal frontend for liked-songs
// migrations.
//
// The [Model] is a bubbletea state machine walking the user through the
// pipeline: connect state, extraction, a confirmation gate, the ordered
// transfer, and a final summary. Engine events arrive over a channel and are
// re-delivered as bubbletea messages, one receive per Update cycle, so the
// terminal stays responsive while the engine paces its API calls.
package ui
