package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/crx/internal/models"
	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/shared"
)

func idSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestComputeDiff(t *testing.T) {
	snapshots := &Snapshots{
		Watchlist: &models.WatchlistExport{Items: []models.WatchlistItem{
			{ContentID: "A"}, {ContentID: "B"}, {ContentID: "C"},
		}},
		History: &models.WatchHistoryExport{Items: []models.WatchHistoryItem{
			{ContentID: "E1"}, {ContentID: "E2"},
			{ContentID: "E2"}, // duplicate entry collapses
		}},
		Crunchylists: &models.CrunchylistsExport{Lists: []models.CrunchylistData{
			{Name: "rewatch", Items: []models.CrunchylistItem{{ContentID: "A"}, {ContentID: "B"}}},
			{Name: "movies", Items: []models.CrunchylistItem{{ContentID: "M"}}},
		}},
		Ratings: &models.RatingsExport{Items: []models.RatingItem{
			{ContentID: "A", Rating: models.FiveStars},
			{ContentID: "B", Rating: models.ThreeStars},
		}},
	}

	t.Run("Empty Target", func(t *testing.T) {
		target := &TargetState{
			WatchlistIDs: idSet(),
			HistoryIDs:   idSet(),
			Crunchylists: map[string]map[string]struct{}{},
		}

		result := ComputeDiff(snapshots, target)

		if result.Watchlist != (DiffCounts{InExport: 3, OnTarget: 0, Missing: 3, AlreadyThere: 0}) {
			t.Errorf("watchlist: %+v", result.Watchlist)
		}
		if result.History != (DiffCounts{InExport: 2, OnTarget: 0, Missing: 2, AlreadyThere: 0}) {
			t.Errorf("history: %+v", result.History)
		}
		if result.Crunchylists != (DiffCounts{InExport: 3, OnTarget: 0, Missing: 3, AlreadyThere: 0}) {
			t.Errorf("crunchylists: %+v", result.Crunchylists)
		}
		if result.Ratings != (DiffCounts{InExport: 2, OnTarget: 0, Missing: 2, AlreadyThere: 0}) {
			t.Errorf("ratings: %+v", result.Ratings)
		}
	})

	t.Run("Partial Overlap", func(t *testing.T) {
		target := &TargetState{
			WatchlistIDs: idSet("A", "Z"),
			HistoryIDs:   idSet("E1"),
			Crunchylists: map[string]map[string]struct{}{
				"rewatch": idSet("A"),
				// M exists on the target but in a differently named list,
				// so it does not count as already there
				"other": idSet("M"),
			},
		}

		result := ComputeDiff(snapshots, target)

		if result.Watchlist != (DiffCounts{InExport: 3, OnTarget: 2, Missing: 2, AlreadyThere: 1}) {
			t.Errorf("watchlist: %+v", result.Watchlist)
		}
		if result.History != (DiffCounts{InExport: 2, OnTarget: 1, Missing: 1, AlreadyThere: 1}) {
			t.Errorf("history: %+v", result.History)
		}
		if result.Crunchylists != (DiffCounts{InExport: 3, OnTarget: 2, Missing: 2, AlreadyThere: 1}) {
			t.Errorf("crunchylists: %+v", result.Crunchylists)
		}
		// Ratings always count as fully missing
		if result.Ratings != (DiffCounts{InExport: 2, OnTarget: 0, Missing: 2, AlreadyThere: 0}) {
			t.Errorf("ratings: %+v", result.Ratings)
		}
	})

	t.Run("Invariants Hold", func(t *testing.T) {
		target := &TargetState{
			WatchlistIDs: idSet("A", "B", "C"),
			HistoryIDs:   idSet("E1", "E2"),
			Crunchylists: map[string]map[string]struct{}{"rewatch": idSet("A", "B")},
		}
		result := ComputeDiff(snapshots, target)
		for _, category := range Categories {
			c := result.Counts(category)
			if c.Missing+c.AlreadyThere != c.InExport {
				t.Errorf("%s: missing %d + already %d != in export %d", category, c.Missing, c.AlreadyThere, c.InExport)
			}
		}
	})
}

func TestLoadSnapshotsMissingFile(t *testing.T) {
	_, err := LoadSnapshots(t.TempDir())
	if !errors.Is(err, shared.ErrSnapshotMissing) {
		t.Errorf("expected ErrSnapshotMissing, got %v", err)
	}
}

func TestEngineDiff(t *testing.T) {
	dir := t.TempDir()
	writeTestSnapshots(t, dir, Snapshots{Watchlist: watchlistSnapshot("A", "B")})

	svc := &mockService{
		fetchWatchlist: func(ctx context.Context) ([]services.WatchlistEntry, error) {
			return watchlistEntries("A"), nil
		},
	}

	engine := newTestEngine(t, svc, nil)
	result, err := engine.Diff(context.Background(), dir)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if result.Watchlist != (DiffCounts{InExport: 2, OnTarget: 1, Missing: 1, AlreadyThere: 1}) {
		t.Errorf("unexpected watchlist diff: %+v", result.Watchlist)
	}
}

func TestFetchTargetStateDropsBadHistoryEntries(t *testing.T) {
	svc := &mockService{
		watchHistory: func(ctx context.Context) (services.HistoryStream, error) {
			return &sliceStream{items: []streamItem{
				{entry: &services.HistoryEntry{Item: models.WatchHistoryItem{ContentID: "E1"}}},
				{err: &services.EntryDecodeError{Page: 1, Index: 1, Err: errors.New("bad json")}},
				{entry: &services.HistoryEntry{Item: models.WatchHistoryItem{ContentID: "E2"}}},
			}}, nil
		},
	}

	engine := newTestEngine(t, svc, nil)
	state, err := engine.FetchTargetState(context.Background())
	if err != nil {
		t.Fatalf("fetch target state: %v", err)
	}
	if len(state.HistoryIDs) != 2 {
		t.Errorf("expected 2 history ids, got %v", state.HistoryIDs)
	}
}
