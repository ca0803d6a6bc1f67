package models_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/crx/internal/models"
)

func TestHistoryPartialDefaultsFalse(t *testing.T) {
	raw := `{
		"metadata": {"profile_name": "mika", "exported_at": "2026-01-02T03:04:05Z", "total_count": 1},
		"items": [{
			"content_id": "GRDV0019R",
			"parent_id": "GY8VEQ95Y",
			"parent_type": "series",
			"title": "Asteroid Blues",
			"series_title": "Cowboy Bebop",
			"date_played": "2026-01-01T20:00:00Z",
			"playhead": 1420,
			"fully_watched": true
		}]
	}`

	var doc models.WatchHistoryExport
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(doc.Items))
	}
	if doc.Items[0].Partial {
		t.Error("partial should default to false when absent")
	}
	if !doc.Items[0].FullyWatched {
		t.Error("fully_watched should be true")
	}
}

func TestWriteAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	exported := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	doc := models.WatchlistExport{
		Metadata: models.ExportMetadata{ProfileName: "mika", ExportedAt: exported, TotalCount: 2},
		Items: []models.WatchlistItem{
			{ContentID: "G4PH0WXVJ", Title: "Cowboy Bebop", Slug: "cowboy-bebop", ContentType: models.ContentTypeSeries, IsFavourite: true},
			{ContentID: "GY5P48XEY", Title: "Akira", Slug: "akira", ContentType: models.ContentTypeMovieListing, FullyWatched: true},
		},
	}

	if err := models.WriteAtomic(dir, models.WatchlistFile, doc); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := models.ReadSnapshot[models.WatchlistExport](dir, models.WatchlistFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Metadata.ProfileName != "mika" || got.Metadata.TotalCount != 2 {
		t.Errorf("metadata mismatch: %+v", got.Metadata)
	}
	if !got.Metadata.ExportedAt.Equal(exported) {
		t.Errorf("exported_at mismatch: %v", got.Metadata.ExportedAt)
	}
	if len(got.Items) != 2 || got.Items[0].ContentID != "G4PH0WXVJ" || got.Items[1].ContentType != models.ContentTypeMovieListing {
		t.Errorf("items mismatch: %+v", got.Items)
	}
}

func TestWriteAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	doc := models.RatingsExport{
		Metadata: models.ExportMetadata{ProfileName: "mika", ExportedAt: time.Now().UTC(), TotalCount: 1},
		Items:    []models.RatingItem{{ContentID: "G4PH0WXVJ", ContentType: models.ContentTypeSeries, Title: "Cowboy Bebop", Rating: models.FiveStars}},
	}
	if err := models.WriteAtomic(dir, models.RatingsFile, doc); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != models.RatingsFile {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only %s, got %v", models.RatingsFile, names)
	}
	if _, err := os.Stat(filepath.Join(dir, ".ratings.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file should be renamed away, stat err = %v", err)
	}
}

func TestReadSnapshotMissingFile(t *testing.T) {
	if _, err := models.ReadSnapshot[models.WatchlistExport](t.TempDir(), models.WatchlistFile); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

func TestValidRating(t *testing.T) {
	cases := []struct {
		label string
		ok    bool
	}{
		{models.OneStar, true},
		{models.TwoStars, true},
		{models.ThreeStars, true},
		{models.FourStars, true},
		{models.FiveStars, true},
		{"SixStars", false},
		{"5s", false},
		{"", false},
	}
	for _, c := range cases {
		if got := models.ValidRating(c.label); got != c.ok {
			t.Errorf("ValidRating(%q) = %v, want %v", c.label, got, c.ok)
		}
	}
}

func TestCrunchylistsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	doc := models.CrunchylistsExport{
		Metadata: models.ExportMetadata{ProfileName: "mika", ExportedAt: time.Now().UTC(), TotalCount: 3},
		Lists: []models.CrunchylistData{
			{Name: "rewatch", Items: []models.CrunchylistItem{{ContentID: "G4PH0WXVJ", Title: "Cowboy Bebop"}}},
			{Name: "movies", Items: []models.CrunchylistItem{
				{ContentID: "GY5P48XEY", Title: "Akira"},
				{ContentID: "G6MG10746", Title: "Your Name"},
			}},
		},
	}
	if err := models.WriteAtomic(dir, models.CrunchylistsFile, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := models.ReadSnapshot[models.CrunchylistsExport](dir, models.CrunchylistsFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Lists) != 2 || got.Lists[1].Name != "movies" || len(got.Lists[1].Items) != 2 {
		t.Errorf("lists mismatch: %+v", got.Lists)
	}
}
