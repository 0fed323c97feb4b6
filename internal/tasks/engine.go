package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/shared"
	"golang.org/x/time/rate"
)

// Defaults for Opts zero values.
const (
	DefaultPageSize      = 50
	DefaultPageDelay     = 300 * time.Millisecond
	DefaultItemDelay     = 150 * time.Millisecond
	DefaultBatchSize     = 50
	DefaultBatchDelay    = 500 * time.Millisecond
	DefaultProgressEvery = 10

	// Backoff when a rate-limit error carries no advertised wait.
	defaultRetryWait = 30 * time.Second
)

// Opts contains per-run tuning for a MigrationEngine.
//
// Zero values fall back to the package defaults, which match the informal rate
// budgets of the Spotify Web API. A negative delay disables that pacing
// entirely; tests combine that with a fake Sleep to run instantly.
type Opts struct {
	PageSize      int           // Saved-tracks page size (max 50)
	PageDelay     time.Duration // Pacing between page fetches
	ItemDelay     time.Duration // Pacing between single-item inserts
	BatchSize     int           // Batch insert size for unordered transfers
	BatchDelay    time.Duration // Pacing between batch inserts
	ProgressEvery int           // Emit transfer progress every Nth success

	// Sleep performs rate-limit backoff. Defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// TransferResult contains the authoritative counts of a transfer run,
// mirroring the terminal complete event.
type TransferResult struct {
	SnapshotID  string
	Transferred int
	Failed      int
	Total       int
}

// MigrationEngine runs extraction and transfer phases against a
// [services.LibraryService].
//
// A single engine instance serves one run at a time; concurrent runs need
// separate instances and separate snapshot artifacts.
type MigrationEngine struct {
	opts Opts

	// Pacing limiters. The first Wait on each is immediate, so pacing only
	// spaces consecutive calls.
	pages   *rate.Limiter
	items   *rate.Limiter
	batches *rate.Limiter
}

// NewMigrationEngine creates an engine with the given options, applying
// package defaults for zero values.
func NewMigrationEngine(opts Opts) *MigrationEngine {
	if opts.PageSize <= 0 || opts.PageSize > 50 {
		opts.PageSize = DefaultPageSize
	}
	if opts.BatchSize <= 0 || opts.BatchSize > 50 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.PageDelay == 0 {
		opts.PageDelay = DefaultPageDelay
	}
	if opts.ItemDelay == 0 {
		opts.ItemDelay = DefaultItemDelay
	}
	if opts.BatchDelay == 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &MigrationEngine{
		opts:    opts,
		pages:   newPacer(opts.PageDelay),
		items:   newPacer(opts.ItemDelay),
		batches: newPacer(opts.BatchDelay),
	}
}

// newPacer builds a limiter spacing consecutive calls d apart. A negative d
// means no pacing.
func newPacer(d time.Duration) *rate.Limiter {
	if d < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// DefaultOpts returns the production pacing configuration.
func DefaultOpts() Opts {
	return Opts{
		PageSize:      DefaultPageSize,
		PageDelay:     DefaultPageDelay,
		ItemDelay:     DefaultItemDelay,
		BatchSize:     DefaultBatchSize,
		BatchDelay:    DefaultBatchDelay,
		ProgressEvery: DefaultProgressEvery,
	}
}

// OptsFromConfig builds engine options from the config file's transfer section.
func OptsFromConfig(c shared.TransferConfig) Opts {
	return Opts{
		PageSize:      c.PageSize,
		PageDelay:     time.Duration(c.PageDelayMS) * time.Millisecond,
		ItemDelay:     time.Duration(c.ItemDelayMS) * time.Millisecond,
		BatchSize:     c.BatchSize,
		BatchDelay:    time.Duration(c.BatchDelayMS) * time.Millisecond,
		ProgressEvery: c.ProgressEvery,
	}
}

// sleepContext blocks for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit delivers an event to the consumer, blocking until received or the
// context is cancelled. A nil channel discards events.
func (e *MigrationEngine) emit(ctx context.Context, events chan<- Event, ev Event) error {
	if events == nil {
		return nil
	}
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff emits a rate-limit event and sleeps for the advertised wait.
func (e *MigrationEngine) backoff(ctx context.Context, events chan<- Event, rl *services.RateLimitError) error {
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = defaultRetryWait
	}
	if err := e.emit(ctx, events, rateLimitEvent(wait)); err != nil {
		return err
	}
	return e.opts.Sleep(ctx, wait)
}

// Extract walks the source account's saved-track library page by page and
// returns the completed snapshot.
//
// Emits exactly one total event (from the first successful page), one track
// event per non-null track, a progress event after each page, and a terminal
// complete event with the emitted track count. A 429 suspends for the
// advertised wait and retries the same page at the same offset; any other
// fetch failure aborts the run. The caller owns persisting the snapshot.
func (e *MigrationEngine) Extract(ctx context.Context, svc services.LibraryService, events chan<- Event) (*models.Snapshot, error) {
	if svc == nil {
		return nil, fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}

	var records []models.TrackRecord
	offset := 0
	total := -1

	for {
		if err := e.pages.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := svc.SavedTracks(ctx, e.opts.PageSize, offset)
		if err != nil {
			var rl *services.RateLimitError
			if errors.As(err, &rl) {
				if err := e.backoff(ctx, events, rl); err != nil {
					return nil, err
				}
				// Retry the same page; offset is not advanced.
				continue
			}
			return nil, fmt.Errorf("%w: saved tracks at offset %d: %v", shared.ErrAPIRequest, offset, err)
		}

		if total < 0 {
			total = page.Total
			if err := e.emit(ctx, events, totalEvent(total)); err != nil {
				return nil, err
			}
		}

		// An empty page ends pagination regardless of the running count;
		// the API's total can drift while we fetch.
		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			if item.Track == nil {
				// Local or unavailable track: skipped, not counted.
				continue
			}
			record := models.TrackRecord{
				ID:       item.Track.ID,
				Name:     item.Track.Name,
				Artists:  services.DisplayArtists(item.Track),
				Album:    item.Track.Album.Name,
				ImageURL: services.CoverImage(item.Track),
				AddedAt:  item.AddedAt,
			}
			records = append(records, record)
			if err := e.emit(ctx, events, trackEvent(record)); err != nil {
				return nil, err
			}
		}

		offset += e.opts.PageSize
		if err := e.emit(ctx, events, fetchProgressEvent(min(offset, total), total)); err != nil {
			return nil, err
		}
	}

	if err := e.emit(ctx, events, extractCompleteEvent(len(records))); err != nil {
		return nil, err
	}

	return &models.Snapshot{
		ID:        shared.GenerateID(),
		CreatedAt: time.Now().UTC(),
		Tracks:    records,
	}, nil
}

// Transfer replays a snapshot into the destination account's library.
//
// In ordered mode (preserveOrder true) tracks are sorted ascending by AddedAt
// and inserted one at a time, so the destination's insertion-time ordering
// matches the source's chronological like order. A 429 on an item is retried
// exactly once after the advertised wait; any other failure (or a second
// consecutive 429) is reported as a per-item error and the run continues.
// Unordered mode inserts batches of BatchSize with no ordering guarantee.
//
// The terminal complete event carries the authoritative transferred/total
// counts in both modes.
func (e *MigrationEngine) Transfer(ctx context.Context, svc services.LibraryService, snapshot *models.Snapshot, preserveOrder bool, events chan<- Event) (*TransferResult, error) {
	if svc == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}
	if snapshot == nil {
		return nil, shared.ErrSnapshotNotFound
	}

	result := &TransferResult{SnapshotID: snapshot.ID, Total: snapshot.Count()}

	var err error
	if preserveOrder {
		err = e.transferOrdered(ctx, svc, snapshot.Tracks, events, result)
	} else {
		err = e.transferBatched(ctx, svc, snapshot.Tracks, events, result)
	}
	if err != nil {
		return result, err
	}

	if err := e.emit(ctx, events, transferCompleteEvent(result.Transferred, result.Total)); err != nil {
		return result, err
	}

	return result, nil
}

// transferOrdered inserts tracks one at a time, oldest first.
func (e *MigrationEngine) transferOrdered(ctx context.Context, svc services.LibraryService, tracks []models.TrackRecord, events chan<- Event, result *TransferResult) error {
	sorted := make([]models.TrackRecord, len(tracks))
	copy(sorted, tracks)
	// Stable: records liked at the same instant keep their snapshot order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AddedAt < sorted[j].AddedAt
	})

	total := len(sorted)

	for _, record := range sorted {
		// Pacing between inserts keeps the destination's insertion index
		// deterministic; this wait is load-bearing for ordering.
		if err := e.items.Wait(ctx); err != nil {
			return err
		}

		err := svc.SaveTrack(ctx, record.ID)

		var rl *services.RateLimitError
		if errors.As(err, &rl) {
			if berr := e.backoff(ctx, events, rl); berr != nil {
				return berr
			}
			// Retry once. A second rate limit falls through to the
			// per-item error path below.
			err = svc.SaveTrack(ctx, record.ID)
		}

		if err != nil {
			result.Failed++
			if eerr := e.emit(ctx, events, errorEvent(err, record.Name)); eerr != nil {
				return eerr
			}
			continue
		}

		result.Transferred++
		if result.Transferred%e.opts.ProgressEvery == 0 || result.Transferred == total {
			if err := e.emit(ctx, events, transferProgressEvent(result.Transferred, total, record.Name)); err != nil {
				return err
			}
		}
	}

	return nil
}

// transferBatched inserts tracks in batches without ordering guarantees.
func (e *MigrationEngine) transferBatched(ctx context.Context, svc services.LibraryService, tracks []models.TrackRecord, events chan<- Event, result *TransferResult) error {
	total := len(tracks)

	for start := 0; start < total; start += e.opts.BatchSize {
		if err := e.batches.Wait(ctx); err != nil {
			return err
		}

		end := min(start+e.opts.BatchSize, total)
		ids := make([]string, 0, end-start)
		for _, record := range tracks[start:end] {
			ids = append(ids, record.ID)
		}

		if err := svc.SaveTracks(ctx, ids); err != nil {
			result.Failed += len(ids)
			if eerr := e.emit(ctx, events, errorEvent(err, fmt.Sprintf("batch %d", start))); eerr != nil {
				return eerr
			}
			continue
		}

		result.Transferred += len(ids)
		if err := e.emit(ctx, events, transferProgressEvent(result.Transferred, total, "")); err != nil {
			return err
		}
	}

	return nil
}
