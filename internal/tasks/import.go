package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/crx/internal/models"
	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/shared"
)

// Counts tallies one category of an import.
type Counts struct {
	Total          int
	Added          int
	AlreadyPresent int
	Failed         int
}

// Processed returns how many items have reached a final outcome.
func (c Counts) Processed() int {
	return c.Added + c.AlreadyPresent + c.Failed
}

func (c Counts) update(category Category) ProgressUpdate {
	return ProgressUpdate{
		Category:       category,
		Total:          c.Total,
		Processed:      c.Processed(),
		Added:          c.Added,
		AlreadyPresent: c.AlreadyPresent,
		Failed:         c.Failed,
	}
}

// ImportResult holds per-category counts of one import run.
type ImportResult struct {
	Watchlist    Counts
	Crunchylists Counts
	Ratings      Counts
	History      Counts
}

// Counts returns the category's counts.
func (r *ImportResult) Counts(category Category) Counts {
	switch category {
	case CategoryWatchlist:
		return r.Watchlist
	case CategoryCrunchylists:
		return r.Crunchylists
	case CategoryRatings:
		return r.Ratings
	default:
		return r.History
	}
}

// Import loads the snapshots in inputDir and reconciles the target profile
// against them: watchlist first, then named lists, ratings, and finally
// watch history. Items already on the target are skipped without a write.
// Cancelling ctx stops dispatch, lets in-flight writes unwind, and returns
// the context error with the counts accumulated so far.
func (e *SyncEngine) Import(ctx context.Context, inputDir string) (*ImportResult, error) {
	snapshots, err := LoadSnapshots(inputDir)
	if err != nil {
		return nil, err
	}

	e.logger.Info("fetching target account state", "profile", e.service.ProfileName())
	target, err := e.FetchTargetState(ctx)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}

	result.Watchlist, err = e.importWatchlist(ctx, snapshots.Watchlist, target)
	if err != nil {
		return result, err
	}
	result.Crunchylists, err = e.importCrunchylists(ctx, snapshots.Crunchylists, target)
	if err != nil {
		return result, err
	}
	result.Ratings, err = e.importRatings(ctx, snapshots.Ratings)
	if err != nil {
		return result, err
	}
	result.History, err = e.importHistory(ctx, snapshots.History, target)
	if err != nil {
		return result, err
	}

	e.reporter.Done()
	return result, nil
}

func (e *SyncEngine) importWatchlist(ctx context.Context, export *models.WatchlistExport, target *TargetState) (Counts, error) {
	c := Counts{Total: len(export.Items)}

	var jobs []writeJob
	for _, item := range export.Items {
		if _, ok := target.WatchlistIDs[item.ContentID]; ok {
			continue
		}
		jobs = append(jobs, writeJob{id: item.ContentID, label: item.Title})
	}
	c.AlreadyPresent = len(export.Items) - len(jobs)
	e.reporter.Progress(c.update(CategoryWatchlist))

	for res := range e.fanOut(ctx, jobs, e.service.AddToWatchlist) {
		switch {
		case res.err == nil:
			e.reporter.Success(res.label)
			c.Added++
		case services.KindOf(res.err) == services.KindConflict:
			e.reporter.Skip(res.label)
			c.AlreadyPresent++
		default:
			e.reporter.Error(fmt.Sprintf("%s -- %v", res.label, res.err))
			c.Failed++
		}
		e.reporter.Progress(c.update(CategoryWatchlist))
	}

	return c, ctx.Err()
}

// importCrunchylists runs sequentially: list membership writes are cheap and
// creating lists concurrently would race the get-or-create step.
func (e *SyncEngine) importCrunchylists(ctx context.Context, export *models.CrunchylistsExport, target *TargetState) (Counts, error) {
	c := Counts{}
	for _, list := range export.Lists {
		c.Total += len(list.Items)
	}
	e.reporter.Progress(c.update(CategoryCrunchylists))

	listIDs, err := e.targetListIDs(ctx)
	if err != nil {
		return c, err
	}

	for _, list := range export.Lists {
		existing, onTarget := target.Crunchylists[list.Name]

		var listID string
		if onTarget {
			listID, err = e.resolveListID(listIDs, list.Name)
			if err != nil {
				return c, err
			}
			e.reporter.Skip(fmt.Sprintf("'%s' already exists, checking items", list.Name))
		} else {
			err = retryWrite(ctx, e.retry, func() error {
				var createErr error
				listID, createErr = e.service.CreateCollection(ctx, list.Name)
				return createErr
			})
			if err != nil {
				return c, fmt.Errorf("creating crunchylist %q: %w", list.Name, err)
			}
			listIDs[list.Name] = listID
			e.reporter.Success(fmt.Sprintf("Created list '%s'", list.Name))
		}

		for _, item := range list.Items {
			if err := ctx.Err(); err != nil {
				return c, err
			}
			if _, present := existing[item.ContentID]; present {
				c.AlreadyPresent++
				e.reporter.Progress(c.update(CategoryCrunchylists))
				continue
			}

			err := retryWrite(ctx, e.retry, func() error {
				return e.service.AddToCollection(ctx, listID, item.ContentID)
			})
			switch {
			case err == nil:
				e.reporter.Success(fmt.Sprintf("  %s -> %s", list.Name, item.Title))
				c.Added++
			case services.KindOf(err) == services.KindConflict:
				c.AlreadyPresent++
			default:
				e.reporter.Error(fmt.Sprintf("%s -- %v", item.Title, err))
				c.Failed++
			}

			e.reporter.Progress(c.update(CategoryCrunchylists))
			sleepCtx(ctx, e.writeDelay)
		}
	}

	return c, ctx.Err()
}

func (e *SyncEngine) targetListIDs(ctx context.Context) (map[string]string, error) {
	collections, err := e.service.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrListUnresolved, err)
	}
	ids := make(map[string]string, len(collections))
	for _, collection := range collections {
		ids[collection.Name] = collection.ID
	}
	return ids, nil
}

func (e *SyncEngine) resolveListID(listIDs map[string]string, name string) (string, error) {
	id, ok := listIDs[name]
	if !ok {
		return "", fmt.Errorf("%w: %q exists on target but has no resolvable id", shared.ErrListUnresolved, name)
	}
	return id, nil
}

func (e *SyncEngine) importRatings(ctx context.Context, export *models.RatingsExport) (Counts, error) {
	c := Counts{Total: len(export.Items)}
	e.reporter.Progress(c.update(CategoryRatings))

	for _, item := range export.Items {
		if err := ctx.Err(); err != nil {
			return c, err
		}

		err := retryWrite(ctx, e.retry, func() error {
			return e.service.SetRating(ctx, item.ContentType, item.ContentID, item.Rating)
		})
		if err == nil {
			e.reporter.Success(fmt.Sprintf("%s (%s)", item.Title, item.Rating))
			c.Added++
		} else {
			e.reporter.Error(fmt.Sprintf("%s -- %v", item.Title, err))
			c.Failed++
		}

		e.reporter.Progress(c.update(CategoryRatings))
		sleepCtx(ctx, e.writeDelay)
	}

	return c, ctx.Err()
}

func (e *SyncEngine) importHistory(ctx context.Context, export *models.WatchHistoryExport, target *TargetState) (Counts, error) {
	c := Counts{Total: len(export.Items)}

	var jobs []writeJob
	for _, item := range export.Items {
		if _, ok := target.HistoryIDs[item.ContentID]; ok {
			continue
		}
		jobs = append(jobs, writeJob{id: item.ContentID, label: historyLabel(item)})
	}
	c.AlreadyPresent = len(export.Items) - len(jobs)
	e.reporter.Progress(c.update(CategoryHistory))

	for res := range e.fanOut(ctx, jobs, e.service.MarkWatched) {
		if res.err == nil {
			e.reporter.Success(res.label)
			c.Added++
		} else {
			e.reporter.Error(fmt.Sprintf("%s -- %v", res.label, res.err))
			c.Failed++
		}
		e.reporter.Progress(c.update(CategoryHistory))
	}

	return c, ctx.Err()
}

// historyLabel falls back to the content ID for partial entries captured
// without panel metadata.
func historyLabel(item models.WatchHistoryItem) string {
	if item.Title == "" {
		return fmt.Sprintf("%s - %s", item.SeriesTitle, item.ContentID)
	}
	return fmt.Sprintf("%s - %s", item.SeriesTitle, item.Title)
}
