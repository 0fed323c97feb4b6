package tasks

import (
	"time"

	"github.com/desertthunder/likeshift/internal/models"
)

// EventType discriminates the kinds of progress events a migration run emits.
type EventType string

const (
	EventTotal     EventType = "total"
	EventTrack     EventType = "track"
	EventProgress  EventType = "progress"
	EventRateLimit EventType = "rate_limit"
	EventError     EventType = "error"
	EventComplete  EventType = "complete"
)

// Event represents a progress event during an extraction or transfer run.
//
// Events are transient: they are streamed to the consumer as produced and
// never persisted. Each event is serialized independently (one SSE message
// per event), so only the fields relevant to its Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// Extraction fields
	Total   int                 `json:"total,omitempty"`
	Fetched int                 `json:"fetched,omitempty"`
	Track   *models.TrackRecord `json:"track,omitempty"`
	Count   int                 `json:"count,omitempty"`

	// Transfer fields
	Transferred  int    `json:"transferred,omitempty"`
	Percent      int    `json:"percent,omitempty"`
	CurrentTrack string `json:"current_track,omitempty"`

	// Rate-limit and error fields
	RetryAfter int    `json:"retry_after,omitempty"`
	Message    string `json:"message,omitempty"`
	Context    string `json:"context,omitempty"`
}

// totalEvent reports the API's total saved-track count, once per extraction.
func totalEvent(total int) Event {
	return Event{Type: EventTotal, Total: total}
}

// trackEvent carries one normalized track record as it is fetched.
func trackEvent(record models.TrackRecord) Event {
	return Event{Type: EventTrack, Track: &record}
}

// fetchProgressEvent reports extraction progress after each page.
func fetchProgressEvent(fetched, total int) Event {
	return Event{Type: EventProgress, Fetched: fetched, Total: total}
}

// transferProgressEvent reports transfer progress, including the percentage
// and the most recently inserted track.
func transferProgressEvent(transferred, total int, currentTrack string) Event {
	percent := 0
	if total > 0 {
		percent = transferred * 100 / total
	}
	return Event{
		Type:         EventProgress,
		Transferred:  transferred,
		Total:        total,
		Percent:      percent,
		CurrentTrack: currentTrack,
	}
}

// rateLimitEvent reports an upstream 429 and the wait about to be taken.
func rateLimitEvent(wait time.Duration) Event {
	return Event{Type: EventRateLimit, RetryAfter: int(wait / time.Second)}
}

// errorEvent reports a recoverable per-item or per-batch failure.
func errorEvent(err error, context string) Event {
	return Event{Type: EventError, Message: err.Error(), Context: context}
}

// extractCompleteEvent terminates an extraction with the emitted track count.
func extractCompleteEvent(count int) Event {
	return Event{Type: EventComplete, Count: count}
}

// transferCompleteEvent terminates a transfer with the authoritative counts.
func transferCompleteEvent(transferred, total int) Event {
	return Event{Type: EventComplete, Transferred: transferred, Total: total}
}
