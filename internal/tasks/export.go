package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/crx/internal/models"
	"github.com/desertthunder/crx/internal/services"
)

const (
	historyProgressEvery = 50
	ratingsProgressEvery = 5
)

// CaptureResult summarizes one snapshot capture.
type CaptureResult struct {
	Directory      string
	Watchlist      int
	History        int
	HistoryDropped int
	Lists          int
	ListItems      int
	Ratings        int
}

// Capture reads the profile's full library and writes the four snapshot
// files into outputDir. Each file is written as soon as its category is
// captured, so a failure partway leaves the completed categories on disk.
func (e *SyncEngine) Capture(ctx context.Context, outputDir string) (*CaptureResult, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	result := &CaptureResult{Directory: outputDir}
	profile := e.service.ProfileName()

	watchlist, err := e.captureWatchlist(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := models.WriteAtomic(outputDir, models.WatchlistFile, watchlist); err != nil {
		return nil, err
	}
	result.Watchlist = len(watchlist.Items)
	e.reporter.Success(fmt.Sprintf("Watchlist: %d items", len(watchlist.Items)))

	history, dropped, err := e.captureHistory(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := models.WriteAtomic(outputDir, models.HistoryFile, history); err != nil {
		return nil, err
	}
	result.History = len(history.Items)
	result.HistoryDropped = dropped
	e.reporter.Success(fmt.Sprintf("Watch history: %d items", len(history.Items)))

	crunchylists, err := e.captureCrunchylists(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := models.WriteAtomic(outputDir, models.CrunchylistsFile, crunchylists); err != nil {
		return nil, err
	}
	result.Lists = len(crunchylists.Lists)
	result.ListItems = crunchylists.Metadata.TotalCount
	e.reporter.Success(fmt.Sprintf("Crunchylists: %d lists, %d items", result.Lists, result.ListItems))

	ratings, err := e.captureRatings(ctx, profile, watchlist.Items, history.Items)
	if err != nil {
		return nil, err
	}
	if err := models.WriteAtomic(outputDir, models.RatingsFile, ratings); err != nil {
		return nil, err
	}
	result.Ratings = len(ratings.Items)
	e.reporter.Success(fmt.Sprintf("Ratings: %d rated items", len(ratings.Items)))

	e.reporter.Done()
	return result, nil
}

func (e *SyncEngine) captureWatchlist(ctx context.Context, profile string) (*models.WatchlistExport, error) {
	entries, err := e.service.FetchWatchlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching watchlist: %w", err)
	}

	items := make([]models.WatchlistItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entry.Item)
	}

	e.reporter.Progress(capturedUpdate(CategoryWatchlist, len(items)))
	return &models.WatchlistExport{
		Metadata: exportMetadata(profile, len(items)),
		Items:    items,
	}, nil
}

// captureHistory drains the history stream. Entries that fail to decode are
// counted and reported but do not stop the capture. Items are sorted oldest
// first so replaying them preserves the original viewing order.
func (e *SyncEngine) captureHistory(ctx context.Context, profile string) (*models.WatchHistoryExport, int, error) {
	stream, err := e.service.WatchHistory(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("opening watch history: %w", err)
	}

	var items []models.WatchHistoryItem
	dropped := 0
	for {
		entry, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		var decodeErr *services.EntryDecodeError
		if errors.As(err, &decodeErr) {
			e.reporter.Error(fmt.Sprintf("Skipping history entry: %v", decodeErr))
			dropped++
			continue
		}
		if err != nil {
			return nil, dropped, fmt.Errorf("reading watch history: %w", err)
		}

		items = append(items, entry.Item)
		if len(items)%historyProgressEvery == 0 {
			e.reporter.Progress(ProgressUpdate{
				Category:  CategoryHistory,
				Processed: len(items),
				Added:     len(items),
				Failed:    dropped,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DatePlayed.Before(items[j].DatePlayed)
	})

	e.reporter.Progress(ProgressUpdate{
		Category:  CategoryHistory,
		Total:     len(items),
		Processed: len(items),
		Added:     len(items),
		Failed:    dropped,
	})

	return &models.WatchHistoryExport{
		Metadata: exportMetadata(profile, len(items)),
		Items:    items,
	}, dropped, nil
}

func (e *SyncEngine) captureCrunchylists(ctx context.Context, profile string) (*models.CrunchylistsExport, error) {
	collections, err := e.service.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching crunchylists: %w", err)
	}

	lists := make([]models.CrunchylistData, 0, len(collections))
	total := 0
	for _, collection := range collections {
		lists = append(lists, models.CrunchylistData{
			Name:  collection.Name,
			Items: collection.Items,
		})
		total += len(collection.Items)
	}

	e.reporter.Progress(capturedUpdate(CategoryCrunchylists, total))
	return &models.CrunchylistsExport{
		Metadata: exportMetadata(profile, total),
		Lists:    lists,
	}, nil
}

type ratingProbe struct {
	contentID   string
	contentType string
	title       string
}

// captureRatings probes the rating of every unique series and movie listing
// seen in the watchlist or history, since the API has no bulk read for
// ratings. Probes run on the worker pool; items without a rating and items
// whose probe fails are simply absent from the snapshot.
func (e *SyncEngine) captureRatings(ctx context.Context, profile string, watchlist []models.WatchlistItem, history []models.WatchHistoryItem) (*models.RatingsExport, error) {
	seen := make(map[string]struct{})
	var probes []ratingProbe

	for _, item := range watchlist {
		if _, ok := seen[item.ContentID]; ok {
			continue
		}
		seen[item.ContentID] = struct{}{}
		probes = append(probes, ratingProbe{item.ContentID, item.ContentType, item.Title})
	}
	for _, item := range history {
		if _, ok := seen[item.ParentID]; ok {
			continue
		}
		seen[item.ParentID] = struct{}{}
		probes = append(probes, ratingProbe{item.ParentID, item.ParentType, item.SeriesTitle})
	}

	probeCh := make(chan ratingProbe)
	resultCh := make(chan *models.RatingItem, len(probes))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for probe := range probeCh {
				resultCh <- e.probeRating(ctx, probe)
			}
		}()
	}

	go func() {
		defer close(probeCh)
		for _, probe := range probes {
			select {
			case probeCh <- probe:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var items []models.RatingItem
	checked := 0
	for item := range resultCh {
		checked++
		if item != nil {
			items = append(items, *item)
		}
		if checked%ratingsProgressEvery == 0 || checked == len(probes) {
			e.reporter.Progress(ProgressUpdate{
				Category:  CategoryRatings,
				Total:     len(probes),
				Processed: checked,
				Added:     len(items),
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.RatingsExport{
		Metadata: exportMetadata(profile, len(items)),
		Items:    items,
	}, nil
}

func (e *SyncEngine) probeRating(ctx context.Context, probe ratingProbe) *models.RatingItem {
	if probe.contentType != models.ContentTypeSeries && probe.contentType != models.ContentTypeMovieListing {
		return nil
	}

	rating, err := e.service.GetRating(ctx, probe.contentType, probe.contentID)
	if err != nil || rating == "" {
		return nil
	}
	return &models.RatingItem{
		ContentID:   probe.contentID,
		ContentType: probe.contentType,
		Title:       probe.title,
		Rating:      rating,
	}
}

func exportMetadata(profile string, count int) models.ExportMetadata {
	return models.ExportMetadata{
		ProfileName: profile,
		ExportedAt:  time.Now().UTC(),
		TotalCount:  count,
	}
}

// capturedUpdate reports a fully captured category where every item counts
// as added.
func capturedUpdate(category Category, count int) ProgressUpdate {
	return ProgressUpdate{
		Category:  category,
		Total:     count,
		Processed: count,
		Added:     count,
	}
}
