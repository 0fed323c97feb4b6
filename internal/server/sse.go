package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/desertthunder/likeshift/internal/tasks"
)

// sseWriter frames migration events as Server-Sent Events.
//
// Each event becomes one `data:` message; the stream carries no event names
// because the JSON payload's type field already discriminates.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares the response for streaming. Returns an error if the
// underlying writer cannot flush incrementally.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

// Write sends one event and flushes it to the client immediately.
func (s *sseWriter) Write(ev tasks.Event) error {
	data, err := shared.MarshalJSON(ev, false)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends a terminal error event for failures the engine reports via
// its return value rather than the event channel.
func (s *sseWriter) WriteError(err error) {
	_ = s.Write(tasks.Event{Type: tasks.EventError, Message: err.Error()})
}

// handleExtractStream runs an extraction against the source account and
// streams its events. On success the snapshot is persisted and becomes the
// pending snapshot for a subsequent transfer.
func (a *App) handleExtractStream(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.services[shared.RoleSource]
	if !ok || a.config.Credentials.Source.Empty() {
		http.Error(w, "source account not connected", http.StatusUnauthorized)
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	events := make(chan tasks.Event)

	type extractResult struct {
		snapshot *models.Snapshot
		err      error
	}
	done := make(chan extractResult, 1)

	go func() {
		snapshot, err := a.engine.Extract(ctx, svc, events)
		close(events)
		done <- extractResult{snapshot, err}
	}()

	for ev := range events {
		if err := stream.Write(ev); err != nil {
			// Client went away; the context cancellation stops the engine.
			a.logger.Debug("extract stream closed", "error", err)
		}
	}

	result := <-done
	if result.err != nil {
		a.logger.Error("extraction failed", "error", result.err)
		stream.WriteError(result.err)
		return
	}

	snapshot := result.snapshot
	if profile, err := svc.UserProfile(ctx); err == nil {
		snapshot.OwnerID = profile.ID
		snapshot.OwnerName = profile.DisplayName
	}
	if err := a.snapshots.Create(snapshot); err != nil {
		a.logger.Error("failed to persist snapshot", "error", err)
		stream.WriteError(err)
		return
	}

	a.mu.Lock()
	a.current = snapshot
	a.mu.Unlock()

	a.logger.Info("extraction complete", "snapshot", snapshot.ID, "tracks", snapshot.Count())
}

// handleTransferStream replays a snapshot into the destination account and
// streams its events.
//
// The snapshot query parameter selects a stored snapshot; without it the
// pending snapshot from the last extraction is used. ordered=false switches
// to batched inserts.
func (a *App) handleTransferStream(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.services[shared.RoleDest]
	if !ok || a.config.Credentials.Dest.Empty() {
		http.Error(w, "destination account not connected", http.StatusUnauthorized)
		return
	}

	snapshot, err := a.resolveSnapshot(r.URL.Query().Get("snapshot"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	ordered := true
	if v := r.URL.Query().Get("ordered"); v == "false" || v == "0" {
		ordered = false
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	run := &models.Run{
		SnapshotID: snapshot.ID,
		Ordered:    ordered,
		Total:      snapshot.Count(),
		StartedAt:  time.Now().UTC(),
	}
	if err := a.runs.Create(run); err != nil {
		a.logger.Warn("failed to record run", "error", err)
	}

	ctx := r.Context()
	events := make(chan tasks.Event)

	type transferOutcome struct {
		result *tasks.TransferResult
		err    error
	}
	done := make(chan transferOutcome, 1)

	go func() {
		result, err := a.engine.Transfer(ctx, svc, snapshot, ordered, events)
		close(events)
		done <- transferOutcome{result, err}
	}()

	for ev := range events {
		if err := stream.Write(ev); err != nil {
			a.logger.Debug("transfer stream closed", "error", err)
		}
	}

	outcome := <-done
	if outcome.result != nil {
		if err := a.runs.Finish(run.ID, outcome.result.Transferred, outcome.result.Failed); err != nil {
			a.logger.Warn("failed to finalize run", "error", err)
		}
	}
	if outcome.err != nil {
		a.logger.Error("transfer failed", "error", outcome.err)
		stream.WriteError(outcome.err)
		return
	}

	a.logger.Info("transfer complete",
		"snapshot", snapshot.ID,
		"transferred", outcome.result.Transferred,
		"failed", outcome.result.Failed,
	)
}

// resolveSnapshot picks the transfer input: an explicit stored snapshot by
// id, or the pending snapshot from the last extraction.
func (a *App) resolveSnapshot(id string) (*models.Snapshot, error) {
	if id != "" {
		return a.snapshots.Get(id)
	}

	a.mu.Lock()
	current := a.current
	a.mu.Unlock()

	if current == nil {
		return nil, fmt.Errorf("%w: no extraction pending, pass ?snapshot=<id>", shared.ErrSnapshotNotFound)
	}
	return current, nil
}
