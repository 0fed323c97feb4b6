package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/likeshift/internal/models"
	th "github.com/desertthunder/likeshift/internal/testing"
)

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		ID:        "snap123",
		OwnerID:   "user1",
		OwnerName: "Test User",
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Tracks: []models.TrackRecord{
			{
				ID:      "track1",
				Name:    "Song One",
				Artists: "Artist One, Artist Two",
				Album:   "Album One",
				AddedAt: "2024-01-01T00:00:00Z",
			},
			{
				ID:      "track2",
				Name:    "Song Two",
				Artists: "Artist Three",
				Album:   "Album Two",
				AddedAt: "2024-01-02T00:00:00Z",
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testSnapshot())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Position,ID,Name,Artists,Album,AddedAt") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "track1") {
			t.Errorf("CSV missing track1 ID")
		}
		if !strings.Contains(output, "Song One") {
			t.Errorf("CSV missing track1 name")
		}
		if !strings.Contains(output, `"Artist One, Artist Two"`) {
			t.Errorf("CSV should quote joined artists, got: %s", output)
		}
		if !strings.Contains(output, "2024-01-01T00:00:00Z") {
			t.Errorf("CSV missing added_at timestamp")
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 3 {
			t.Errorf("expected header + 2 rows, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[1], "1,") || !strings.HasPrefix(lines[2], "2,") {
			t.Errorf("expected 1-based positions, got rows: %v", lines[1:])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testSnapshot())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "# Test User's Liked Songs") {
			t.Errorf("Markdown missing title, got: %s", output)
		}
		if !strings.Contains(output, "**Tracks**: 2") {
			t.Errorf("Markdown missing track count")
		}
		if !strings.Contains(output, "1. Artist One, Artist Two - Song One (Album One) [liked 2024-01-01T00:00:00Z]") {
			t.Errorf("Markdown missing numbered track line, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown without owner", func(t *testing.T) {
		snapshot := testSnapshot()
		snapshot.OwnerName = ""

		data, err := ExportToMarkdown(snapshot)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		if !strings.Contains(string(data), "# Liked Songs") {
			t.Errorf("expected generic title, got: %s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testSnapshot())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Owner: Test User") {
			t.Errorf("text missing owner")
		}
		if !strings.Contains(output, "Tracks: 2") {
			t.Errorf("text missing track count")
		}
		if !strings.Contains(output, "1. Artist One, Artist Two - Song One") {
			t.Errorf("text missing track line, got: %s", output)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(testSnapshot())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `"track_count": 2`) {
			t.Errorf("metadata missing track count, got: %s", output)
		}
		if strings.Contains(output, "Song One") {
			t.Errorf("metadata should not include tracks")
		}
	})
}

func TestFileExports(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		dir := t.TempDir()
		base := filepath.Join(dir, "export")

		result, err := WriteCSVExport(testSnapshot(), base)
		if err != nil {
			t.Fatalf("WriteCSVExport failed: %v", err)
		}

		th.AssertFileExists(t, result.TracksFile)
		th.AssertFileExists(t, result.MetadataFile)

		content := th.MustReadFile(t, result.TracksFile)
		if !strings.Contains(content, "Song Two") {
			t.Errorf("CSV file missing track data")
		}
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "snapshot-export")

		mdFile, err := WriteMarkdownExport(testSnapshot(), dir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		th.AssertDirExists(t, dir)
		th.AssertFileExists(t, mdFile)

		content := th.MustReadFile(t, mdFile)
		if !strings.Contains(content, "## Tracks") {
			t.Errorf("Markdown file missing tracks section")
		}
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.txt")

		written, err := WriteTextExport(testSnapshot(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if written != path {
			t.Errorf("expected path %s, got %s", path, written)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteTextExport defaults filename to snapshot ID", func(t *testing.T) {
		wd := th.MustGetwd(t)
		th.MustChdir(t, t.TempDir())
		defer th.MustChdir(t, wd)

		written, err := WriteTextExport(testSnapshot(), "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if written != "snap123_tracks.txt" {
			t.Errorf("expected default filename, got %s", written)
		}
		if _, err := os.Stat(written); err != nil {
			t.Errorf("expected file created: %v", err)
		}
	})
}
