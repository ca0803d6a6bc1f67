package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot file names inside an export directory.
const (
	WatchlistFile    = "watchlist.json"
	HistoryFile      = "watch_history.json"
	CrunchylistsFile = "crunchylists.json"
	RatingsFile      = "ratings.json"
)

// Content types form a closed set; anything else is rejected at the write boundary.
const (
	ContentTypeSeries       = "series"
	ContentTypeMovieListing = "movie_listing"
)

// Star-level rating labels as persisted in ratings.json.
const (
	OneStar    = "OneStar"
	TwoStars   = "TwoStars"
	ThreeStars = "ThreeStars"
	FourStars  = "FourStars"
	FiveStars  = "FiveStars"
)

// ExportMetadata describes when and for whom a snapshot was captured.
type ExportMetadata struct {
	ProfileName string    `json:"profile_name"`
	ExportedAt  time.Time `json:"exported_at"`
	TotalCount  int       `json:"total_count"`
}

// WatchlistExport is the watchlist snapshot document.
type WatchlistExport struct {
	Metadata ExportMetadata  `json:"metadata"`
	Items    []WatchlistItem `json:"items"`
}

// WatchlistItem is one watchlist entry. ContentID is unique within the snapshot.
type WatchlistItem struct {
	ContentID    string `json:"content_id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	ContentType  string `json:"content_type"`
	IsFavourite  bool   `json:"is_favourite"`
	FullyWatched bool   `json:"fully_watched"`
}

// WatchHistoryExport is the watch history snapshot document.
type WatchHistoryExport struct {
	Metadata ExportMetadata     `json:"metadata"`
	Items    []WatchHistoryItem `json:"items"`
}

// WatchHistoryItem is one watched episode or movie.
//
// Partial marks entries whose panel metadata was unavailable at capture time;
// it defaults to false when absent from the input document.
type WatchHistoryItem struct {
	ContentID    string    `json:"content_id"`
	ParentID     string    `json:"parent_id"`
	ParentType   string    `json:"parent_type"`
	Title        string    `json:"title"`
	SeriesTitle  string    `json:"series_title"`
	DatePlayed   time.Time `json:"date_played"`
	Playhead     int       `json:"playhead"`
	FullyWatched bool      `json:"fully_watched"`
	Partial      bool      `json:"partial,omitempty"`
}

// CrunchylistsExport is the snapshot document for all named lists.
type CrunchylistsExport struct {
	Metadata ExportMetadata    `json:"metadata"`
	Lists    []CrunchylistData `json:"lists"`
}

// CrunchylistData is one named list. ContentID is unique within a list but may
// repeat across lists.
type CrunchylistData struct {
	Name  string            `json:"name"`
	Items []CrunchylistItem `json:"items"`
}

// CrunchylistItem is one entry in a named list.
type CrunchylistItem struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
}

// RatingsExport is the ratings snapshot document.
type RatingsExport struct {
	Metadata ExportMetadata `json:"metadata"`
	Items    []RatingItem   `json:"items"`
}

// RatingItem is one rated series or movie listing.
type RatingItem struct {
	ContentID   string `json:"content_id"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Rating      string `json:"rating"`
}

// ValidRating reports whether s is one of the five star-level labels.
func ValidRating(s string) bool {
	switch s {
	case OneStar, TwoStars, ThreeStars, FourStars, FiveStars:
		return true
	}
	return false
}

// ReadSnapshot reads and decodes one snapshot document from dir.
func ReadSnapshot[T any](dir, filename string) (*T, error) {
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &doc, nil
}

// WriteAtomic serializes doc and writes it under its final name in dir via a
// temporary sibling file and a rename, so a crash never exposes a half-written
// snapshot under the real name.
func WriteAtomic(dir, filename string, doc any) error {
	target := filepath.Join(dir, filename)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filename))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filename, err)
	}

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("renaming %s -> %s: %w", tmp, target, err)
	}
	return nil
}
