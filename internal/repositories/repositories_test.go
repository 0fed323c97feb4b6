package repositories

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
)

func setupTestDB(t *testing.T) *SnapshotRepository {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return NewSnapshotRepository(db)
}

func testSnapshot(id string, created time.Time, tracks ...models.TrackRecord) *models.Snapshot {
	return &models.Snapshot{
		ID:        id,
		OwnerID:   "user-1",
		OwnerName: "Test User",
		CreatedAt: created,
		Tracks:    tracks,
	}
}

func testTrack(id, name, addedAt string) models.TrackRecord {
	return models.TrackRecord{
		ID:      id,
		Name:    name,
		Artists: "Artist A, Artist B",
		Album:   "Album",
		AddedAt: addedAt,
	}
}

func TestSnapshotRepository(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("round-trips a snapshot with track order intact", func(t *testing.T) {
		repo := setupTestDB(t)
		snapshot := testSnapshot("snap-1", now,
			testTrack("t3", "Newest", "2024-01-03T00:00:00Z"),
			testTrack("t1", "Oldest", "2024-01-01T00:00:00Z"),
			testTrack("t2", "Middle", "2024-01-02T00:00:00Z"),
		)

		if err := repo.Create(snapshot); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := repo.Get("snap-1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}

		if got.OwnerName != "Test User" {
			t.Errorf("expected owner name preserved, got %q", got.OwnerName)
		}
		if got.Count() != 3 {
			t.Fatalf("expected 3 tracks, got %d", got.Count())
		}
		// Extraction order, not AddedAt order.
		wantOrder := []string{"t3", "t1", "t2"}
		for i, id := range wantOrder {
			if got.Tracks[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, got.Tracks[i].ID)
			}
		}
		if got.Tracks[0].Artists != "Artist A, Artist B" {
			t.Errorf("expected artist string preserved, got %q", got.Tracks[0].Artists)
		}
		if got.Tracks[1].AddedAt != "2024-01-01T00:00:00Z" {
			t.Errorf("expected added_at preserved verbatim, got %q", got.Tracks[1].AddedAt)
		}
	})

	t.Run("assigns an id when missing", func(t *testing.T) {
		repo := setupTestDB(t)
		snapshot := testSnapshot("", now, testTrack("t1", "One", "2024-01-01T00:00:00Z"))

		if err := repo.Create(snapshot); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if snapshot.ID == "" {
			t.Error("expected generated snapshot id")
		}
	})

	t.Run("get missing snapshot returns ErrSnapshotNotFound", func(t *testing.T) {
		repo := setupTestDB(t)

		_, err := repo.Get("nope")
		if !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("latest returns newest snapshot", func(t *testing.T) {
		repo := setupTestDB(t)
		older := testSnapshot("snap-old", now.Add(-time.Hour), testTrack("t1", "One", "2024-01-01T00:00:00Z"))
		newer := testSnapshot("snap-new", now, testTrack("t2", "Two", "2024-01-02T00:00:00Z"))

		if err := repo.Create(older); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.Create(newer); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := repo.Latest()
		if err != nil {
			t.Fatalf("latest failed: %v", err)
		}
		if got.ID != "snap-new" {
			t.Errorf("expected snap-new, got %s", got.ID)
		}
		if got.Count() != 1 {
			t.Errorf("expected latest to include tracks, got %d", got.Count())
		}
	})

	t.Run("list returns summaries newest first", func(t *testing.T) {
		repo := setupTestDB(t)
		for i, id := range []string{"snap-a", "snap-b", "snap-c"} {
			snap := testSnapshot(id, now.Add(time.Duration(i)*time.Minute),
				testTrack("t1", "One", "2024-01-01T00:00:00Z"),
				testTrack("t2", "Two", "2024-01-02T00:00:00Z"),
			)
			if err := repo.Create(snap); err != nil {
				t.Fatalf("create failed: %v", err)
			}
		}

		summaries, err := repo.List()
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(summaries) != 3 {
			t.Fatalf("expected 3 summaries, got %d", len(summaries))
		}
		if summaries[0].ID != "snap-c" {
			t.Errorf("expected newest first, got %s", summaries[0].ID)
		}
		if summaries[0].TrackCount != 2 {
			t.Errorf("expected track count 2, got %d", summaries[0].TrackCount)
		}
	})

	t.Run("delete removes snapshot and tracks", func(t *testing.T) {
		repo := setupTestDB(t)
		snapshot := testSnapshot("snap-1", now, testTrack("t1", "One", "2024-01-01T00:00:00Z"))

		if err := repo.Create(snapshot); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.Delete("snap-1"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		if _, err := repo.Get("snap-1"); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound after delete, got %v", err)
		}
	})

	t.Run("delete missing snapshot returns ErrSnapshotNotFound", func(t *testing.T) {
		repo := setupTestDB(t)

		if err := repo.Delete("nope"); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("rejects nil snapshot", func(t *testing.T) {
		repo := setupTestDB(t)

		if err := repo.Create(nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRunRepository(t *testing.T) {
	setup := func(t *testing.T) (*SnapshotRepository, *RunRepository) {
		t.Helper()
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open test database: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		return NewSnapshotRepository(db), NewRunRepository(db)
	}

	now := time.Now().UTC().Truncate(time.Second)

	t.Run("creates and finishes a run", func(t *testing.T) {
		snapshots, runs := setup(t)
		if err := snapshots.Create(testSnapshot("snap-1", now, testTrack("t1", "One", "2024-01-01T00:00:00Z"))); err != nil {
			t.Fatalf("create snapshot failed: %v", err)
		}

		run := &models.Run{SnapshotID: "snap-1", Ordered: true, Total: 1}
		if err := runs.Create(run); err != nil {
			t.Fatalf("create run failed: %v", err)
		}
		if run.ID == "" {
			t.Fatal("expected generated run id")
		}
		if run.StartedAt.IsZero() {
			t.Error("expected started_at stamped")
		}

		if err := runs.Finish(run.ID, 1, 0); err != nil {
			t.Fatalf("finish failed: %v", err)
		}

		got, err := runs.Get(run.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Transferred != 1 || got.Failed != 0 {
			t.Errorf("expected counts 1/0, got %d/%d", got.Transferred, got.Failed)
		}
		if !got.Complete() {
			t.Error("expected run to report complete")
		}
	})

	t.Run("in-flight run is not complete", func(t *testing.T) {
		_, runs := setup(t)
		run := &models.Run{SnapshotID: "snap-1", Ordered: true, Total: 5}
		if err := runs.Create(run); err != nil {
			t.Fatalf("create run failed: %v", err)
		}

		got, err := runs.Get(run.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.FinishedAt != nil {
			t.Error("expected nil finished_at for in-flight run")
		}
		if got.Complete() {
			t.Error("in-flight run must not report complete")
		}
	})

	t.Run("lists runs for a snapshot newest first", func(t *testing.T) {
		_, runs := setup(t)
		for i := 0; i < 3; i++ {
			run := &models.Run{
				SnapshotID: "snap-1",
				Ordered:    true,
				Total:      10,
				StartedAt:  now.Add(time.Duration(i) * time.Minute),
			}
			if err := runs.Create(run); err != nil {
				t.Fatalf("create run failed: %v", err)
			}
		}
		other := &models.Run{SnapshotID: "snap-2", Total: 1, StartedAt: now}
		if err := runs.Create(other); err != nil {
			t.Fatalf("create run failed: %v", err)
		}

		got, err := runs.ListBySnapshot("snap-1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(got))
		}
		if !got[0].StartedAt.After(got[2].StartedAt) {
			t.Error("expected newest run first")
		}
	})

	t.Run("finish on missing run fails", func(t *testing.T) {
		_, runs := setup(t)
		if err := runs.Finish("nope", 1, 0); err == nil {
			t.Error("expected error finishing missing run")
		}
	})
}

func TestFileSnapshotStore(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("round-trips a snapshot through JSON", func(t *testing.T) {
		store := NewFileSnapshotStore()
		path := filepath.Join(t.TempDir(), "snapshots", "snap.json")
		snapshot := testSnapshot("snap-1", now,
			testTrack("t1", "One", "2024-01-01T00:00:00Z"),
			testTrack("t2", "Two", "2024-01-02T00:00:00Z"),
		)

		if err := store.Save(snapshot, path); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		got, err := store.Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if got.ID != "snap-1" || got.Count() != 2 {
			t.Errorf("unexpected snapshot: id=%s count=%d", got.ID, got.Count())
		}
		if got.Tracks[0].ID != "t1" || got.Tracks[1].ID != "t2" {
			t.Errorf("track order not preserved: %v", got.Tracks)
		}
	})

	t.Run("missing file maps to ErrSnapshotNotFound", func(t *testing.T) {
		store := NewFileSnapshotStore()

		_, err := store.Load(filepath.Join(t.TempDir(), "missing.json"))
		if !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("save leaves no temp files behind", func(t *testing.T) {
		store := NewFileSnapshotStore()
		dir := t.TempDir()
		snapshot := testSnapshot("snap-1", now, testTrack("t1", "One", "2024-01-01T00:00:00Z"))

		if err := store.Save(snapshot, filepath.Join(dir, "snap.json")); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("readdir failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "snap.json" {
			t.Errorf("expected only snap.json in dir, got %v", entries)
		}
	})

	t.Run("rejects nil snapshot", func(t *testing.T) {
		store := NewFileSnapshotStore()

		err := store.Save(nil, filepath.Join(t.TempDir(), "snap.json"))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
