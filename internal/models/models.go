package models

import (
	"time"
)

// TrackRecord is a single liked track normalized from the source library.
//
// Immutable once fetched. AddedAt is the ISO 8601 timestamp the source library
// assigned when the user liked the track; it is kept verbatim as the ordering
// key for order-preserving transfers.
type TrackRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artists  string `json:"artists"`
	Album    string `json:"album"`
	ImageURL string `json:"image,omitempty"`
	AddedAt  string `json:"added_at"`
}

// Snapshot is the flat, ordered list of liked tracks captured from a source
// library. It is the sole artifact between the extraction and transfer phases;
// track order is the arrival order of the paginated source responses.
type Snapshot struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id,omitempty"`
	OwnerName string        `json:"owner_name,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Tracks    []TrackRecord `json:"tracks"`
}

// Count returns the number of tracks in the snapshot.
func (s *Snapshot) Count() int {
	return len(s.Tracks)
}

// SnapshotSummary is snapshot metadata without the track list, used for
// listings where loading every track would be wasteful.
type SnapshotSummary struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	OwnerName  string    `json:"owner_name,omitempty"`
	TrackCount int       `json:"track_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserProfile identifies the account a credential belongs to.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image,omitempty"`
}

// Run records one transfer run against a snapshot. The transferred and failed
// counts mirror the terminal complete event and are authoritative regardless
// of per-item errors during the run.
type Run struct {
	ID          string     `json:"id"`
	SnapshotID  string     `json:"snapshot_id"`
	Ordered     bool       `json:"ordered"`
	Transferred int        `json:"transferred"`
	Failed      int        `json:"failed"`
	Total       int        `json:"total"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Complete reports whether the run finished with every track transferred.
func (r *Run) Complete() bool {
	return r.FinishedAt != nil && r.Transferred == r.Total
}
