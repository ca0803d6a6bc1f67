package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/desertthunder/crx/internal/models"
	"github.com/desertthunder/crx/internal/shared"
)

// Snapshots holds the four snapshot documents of one export directory.
type Snapshots struct {
	Watchlist    *models.WatchlistExport
	History      *models.WatchHistoryExport
	Crunchylists *models.CrunchylistsExport
	Ratings      *models.RatingsExport
}

// LoadSnapshots reads all snapshot documents from dir.
func LoadSnapshots(dir string) (*Snapshots, error) {
	watchlist, err := models.ReadSnapshot[models.WatchlistExport](dir, models.WatchlistFile)
	if err != nil {
		return nil, wrapSnapshotErr(err)
	}
	history, err := models.ReadSnapshot[models.WatchHistoryExport](dir, models.HistoryFile)
	if err != nil {
		return nil, wrapSnapshotErr(err)
	}
	crunchylists, err := models.ReadSnapshot[models.CrunchylistsExport](dir, models.CrunchylistsFile)
	if err != nil {
		return nil, wrapSnapshotErr(err)
	}
	ratings, err := models.ReadSnapshot[models.RatingsExport](dir, models.RatingsFile)
	if err != nil {
		return nil, wrapSnapshotErr(err)
	}

	return &Snapshots{
		Watchlist:    watchlist,
		History:      history,
		Crunchylists: crunchylists,
		Ratings:      ratings,
	}, nil
}

// errors.Is unwraps the read error's %w chain, which os.IsNotExist would not.
func wrapSnapshotErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", shared.ErrSnapshotMissing, err)
	}
	return err
}

// DiffCounts compares one category of a snapshot against the target.
type DiffCounts struct {
	InExport     int
	OnTarget     int
	Missing      int
	AlreadyThere int
}

// DiffResult holds the per-category comparison of a snapshot against a
// target profile.
type DiffResult struct {
	Watchlist    DiffCounts
	History      DiffCounts
	Crunchylists DiffCounts
	Ratings      DiffCounts
}

// Counts returns the category's counts.
func (r *DiffResult) Counts(category Category) DiffCounts {
	switch category {
	case CategoryWatchlist:
		return r.Watchlist
	case CategoryHistory:
		return r.History
	case CategoryCrunchylists:
		return r.Crunchylists
	default:
		return r.Ratings
	}
}

// ComputeDiff compares snapshots against the target state.
//
// Watchlist and history counts dedupe by content ID. Crunchylist counts are
// per item; an item is already there only when the same-named target list
// holds it. Star ratings cannot be read back per item in bulk, so the whole
// ratings snapshot counts as missing.
func ComputeDiff(snapshots *Snapshots, target *TargetState) *DiffResult {
	watchlistIDs := make(map[string]struct{}, len(snapshots.Watchlist.Items))
	for _, item := range snapshots.Watchlist.Items {
		watchlistIDs[item.ContentID] = struct{}{}
	}
	watchlistAlready := 0
	for id := range watchlistIDs {
		if _, ok := target.WatchlistIDs[id]; ok {
			watchlistAlready++
		}
	}

	historyIDs := make(map[string]struct{}, len(snapshots.History.Items))
	for _, item := range snapshots.History.Items {
		historyIDs[item.ContentID] = struct{}{}
	}
	historyAlready := 0
	for id := range historyIDs {
		if _, ok := target.HistoryIDs[id]; ok {
			historyAlready++
		}
	}

	listTotal := 0
	listAlready := 0
	for _, list := range snapshots.Crunchylists.Lists {
		listTotal += len(list.Items)
		targetItems, ok := target.Crunchylists[list.Name]
		if !ok {
			continue
		}
		for _, item := range list.Items {
			if _, present := targetItems[item.ContentID]; present {
				listAlready++
			}
		}
	}
	listOnTarget := 0
	for _, ids := range target.Crunchylists {
		listOnTarget += len(ids)
	}

	ratingCount := len(snapshots.Ratings.Items)

	return &DiffResult{
		Watchlist: DiffCounts{
			InExport:     len(watchlistIDs),
			OnTarget:     len(target.WatchlistIDs),
			Missing:      len(watchlistIDs) - watchlistAlready,
			AlreadyThere: watchlistAlready,
		},
		History: DiffCounts{
			InExport:     len(historyIDs),
			OnTarget:     len(target.HistoryIDs),
			Missing:      len(historyIDs) - historyAlready,
			AlreadyThere: historyAlready,
		},
		Crunchylists: DiffCounts{
			InExport:     listTotal,
			OnTarget:     listOnTarget,
			Missing:      listTotal - listAlready,
			AlreadyThere: listAlready,
		},
		Ratings: DiffCounts{
			InExport: ratingCount,
			Missing:  ratingCount,
		},
	}
}

// Diff loads the snapshots in inputDir and compares them against the live
// target profile.
func (e *SyncEngine) Diff(ctx context.Context, inputDir string) (*DiffResult, error) {
	snapshots, err := LoadSnapshots(inputDir)
	if err != nil {
		return nil, err
	}

	target, err := e.FetchTargetState(ctx)
	if err != nil {
		return nil, err
	}

	return ComputeDiff(snapshots, target), nil
}
