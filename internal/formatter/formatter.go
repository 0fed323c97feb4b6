// package formatter provides functions to export library snapshots to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/shared"
)

// ExportToCSV converts a Snapshot to CSV format with columns: Position, ID, Name, Artists, Album, AddedAt
func ExportToCSV(snapshot *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Name", "Artists", "Album", "AddedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range snapshot.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Name,
			track.Artists,
			track.Album,
			track.AddedAt,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Snapshot to Markdown format
func ExportToMarkdown(snapshot *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	title := "Liked Songs"
	if snapshot.OwnerName != "" {
		title = fmt.Sprintf("%s's Liked Songs", snapshot.OwnerName)
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	buf.WriteString(fmt.Sprintf("**Snapshot**: %s\n", snapshot.ID))
	buf.WriteString(fmt.Sprintf("**Captured**: %s\n", snapshot.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", snapshot.Count()))

	buf.WriteString("## Tracks\n\n")
	for i, track := range snapshot.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [liked %s]\n", i+1, track.Artists, track.Name, albumPart, track.AddedAt))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Snapshot to plain text format
func ExportToText(snapshot *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	if snapshot.OwnerName != "" {
		buf.WriteString(fmt.Sprintf("Owner: %s\n", snapshot.OwnerName))
	}
	buf.WriteString(fmt.Sprintf("Snapshot: %s\n", snapshot.ID))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", snapshot.Count()))

	for i, track := range snapshot.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.Artists, track.Name))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of snapshot metadata (without tracks)
func ToMetadataJSON(snapshot *models.Snapshot) ([]byte, error) {
	summary := models.SnapshotSummary{
		ID:         snapshot.ID,
		OwnerID:    snapshot.OwnerID,
		OwnerName:  snapshot.OwnerName,
		TrackCount: snapshot.Count(),
		CreatedAt:  snapshot.CreatedAt,
	}
	return shared.MarshalJSON(summary, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a snapshot to CSV format with accompanying metadata JSON file.
//
// Defaults to snapshot ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(snapshot *models.Snapshot, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = snapshot.ID
	}

	csvData, err := ExportToCSV(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a snapshot to README.md in a dedicated directory.
//
// Directory name defaults to the snapshot ID.
func WriteMarkdownExport(snapshot *models.Snapshot, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = snapshot.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a snapshot to plain text format.
//
// Defaults to {snapshot.ID}_tracks.txt as the filename.
func WriteTextExport(snapshot *models.Snapshot, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_tracks.txt", snapshot.ID)
	}

	textData, err := ExportToText(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
