package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crx/internal/models"
	"github.com/desertthunder/crx/internal/services"
)

func writeTestSnapshots(t *testing.T, dir string, snaps Snapshots) {
	t.Helper()
	meta := models.ExportMetadata{ProfileName: "test", ExportedAt: time.Now().UTC()}

	if snaps.Watchlist == nil {
		snaps.Watchlist = &models.WatchlistExport{Metadata: meta}
	}
	if snaps.History == nil {
		snaps.History = &models.WatchHistoryExport{Metadata: meta}
	}
	if snaps.Crunchylists == nil {
		snaps.Crunchylists = &models.CrunchylistsExport{Metadata: meta}
	}
	if snaps.Ratings == nil {
		snaps.Ratings = &models.RatingsExport{Metadata: meta}
	}

	for filename, doc := range map[string]any{
		models.WatchlistFile:    snaps.Watchlist,
		models.HistoryFile:      snaps.History,
		models.CrunchylistsFile: snaps.Crunchylists,
		models.RatingsFile:      snaps.Ratings,
	} {
		if err := models.WriteAtomic(dir, filename, doc); err != nil {
			t.Fatalf("writing %s: %v", filename, err)
		}
	}
}

func watchlistSnapshot(ids ...string) *models.WatchlistExport {
	items := make([]models.WatchlistItem, len(ids))
	for i, id := range ids {
		items[i] = models.WatchlistItem{ContentID: id, Title: "Title " + id, ContentType: models.ContentTypeSeries}
	}
	return &models.WatchlistExport{
		Metadata: models.ExportMetadata{ProfileName: "test", TotalCount: len(items)},
		Items:    items,
	}
}

func watchlistEntries(ids ...string) []services.WatchlistEntry {
	entries := make([]services.WatchlistEntry, len(ids))
	for i, id := range ids {
		entries[i] = services.WatchlistEntry{
			Item: models.WatchlistItem{ContentID: id, ContentType: models.ContentTypeSeries},
		}
	}
	return entries
}

func TestImportWatchlist(t *testing.T) {
	t.Run("Prefilters And Counts Outcomes", func(t *testing.T) {
		dir := t.TempDir()
		writeTestSnapshots(t, dir, Snapshots{
			Watchlist: watchlistSnapshot("A", "B", "C", "D"),
		})

		var mu sync.Mutex
		written := make(map[string]int)
		svc := &mockService{
			// A is already on the target, so it must never be written
			fetchWatchlist: func(ctx context.Context) ([]services.WatchlistEntry, error) {
				return watchlistEntries("A"), nil
			},
			addToWatchlist: func(ctx context.Context, contentID string) error {
				mu.Lock()
				written[contentID]++
				mu.Unlock()
				switch contentID {
				case "B":
					return nil
				case "C":
					return conflictErr("POST /watchlist")
				default:
					return &services.APIError{Op: "POST /watchlist", Status: 400, Kind: services.KindPermanent, Message: "bad id"}
				}
			},
		}

		engine := newTestEngine(t, svc, nil)
		result, err := engine.Import(context.Background(), dir)
		if err != nil {
			t.Fatalf("import: %v", err)
		}

		c := result.Watchlist
		if c.Total != 4 || c.Added != 1 || c.AlreadyPresent != 2 || c.Failed != 1 {
			t.Errorf("unexpected counts: %+v", c)
		}
		if c.Processed() != c.Total {
			t.Errorf("processed %d != total %d", c.Processed(), c.Total)
		}
		if written["A"] != 0 {
			t.Error("item already on target was written")
		}
		if written["C"] != 1 {
			t.Errorf("conflict should not be retried, wrote %d times", written["C"])
		}
	})

	t.Run("Transient Failures Retry Then Succeed", func(t *testing.T) {
		dir := t.TempDir()
		writeTestSnapshots(t, dir, Snapshots{Watchlist: watchlistSnapshot("A")})

		var mu sync.Mutex
		attempts := 0
		svc := &mockService{
			addToWatchlist: func(ctx context.Context, contentID string) error {
				mu.Lock()
				defer mu.Unlock()
				attempts++
				if attempts < 3 {
					return transientErr("POST /watchlist")
				}
				return nil
			},
		}

		engine := newTestEngine(t, svc, nil)
		result, err := engine.Import(context.Background(), dir)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if result.Watchlist.Added != 1 || result.Watchlist.Failed != 0 {
			t.Errorf("unexpected counts: %+v", result.Watchlist)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})
}

func TestImportCrunchylists(t *testing.T) {
	dir := t.TempDir()
	writeTestSnapshots(t, dir, Snapshots{
		Crunchylists: &models.CrunchylistsExport{
			Metadata: models.ExportMetadata{ProfileName: "test", TotalCount: 3},
			Lists: []models.CrunchylistData{
				{Name: "rewatch", Items: []models.CrunchylistItem{
					{ContentID: "A", Title: "Alpha"},
					{ContentID: "B", Title: "Beta"},
				}},
				{Name: "movies", Items: []models.CrunchylistItem{
					{ContentID: "M", Title: "Movie"},
				}},
			},
		},
	})

	var mu sync.Mutex
	var created []string
	adds := make(map[string][]string)
	svc := &mockService{
		// "rewatch" exists on the target and already holds A; "movies" does not exist
		listCollections: func(ctx context.Context) ([]services.Collection, error) {
			return []services.Collection{
				{ID: "L1", Name: "rewatch", Items: []models.CrunchylistItem{{ContentID: "A", Title: "Alpha"}}},
			}, nil
		},
		createCollection: func(ctx context.Context, name string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			created = append(created, name)
			return "L2", nil
		},
		addToCollection: func(ctx context.Context, listID, contentID string) error {
			mu.Lock()
			defer mu.Unlock()
			adds[listID] = append(adds[listID], contentID)
			return nil
		},
	}

	engine := newTestEngine(t, svc, nil)
	result, err := engine.Import(context.Background(), dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	c := result.Crunchylists
	if c.Total != 3 || c.Added != 2 || c.AlreadyPresent != 1 || c.Failed != 0 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if len(created) != 1 || created[0] != "movies" {
		t.Errorf("expected only 'movies' created, got %v", created)
	}
	if got := adds["L1"]; len(got) != 1 || got[0] != "B" {
		t.Errorf("expected only B added to existing list, got %v", got)
	}
	if got := adds["L2"]; len(got) != 1 || got[0] != "M" {
		t.Errorf("expected M added to created list, got %v", got)
	}
}

func TestImportRatings(t *testing.T) {
	dir := t.TempDir()
	writeTestSnapshots(t, dir, Snapshots{
		Ratings: &models.RatingsExport{
			Metadata: models.ExportMetadata{ProfileName: "test", TotalCount: 2},
			Items: []models.RatingItem{
				{ContentID: "A", ContentType: models.ContentTypeSeries, Title: "Alpha", Rating: models.FiveStars},
				{ContentID: "B", ContentType: models.ContentTypeSeries, Title: "Beta", Rating: models.OneStar},
			},
		},
	})

	var mu sync.Mutex
	set := make(map[string]string)
	svc := &mockService{
		setRating: func(ctx context.Context, contentType, contentID, rating string) error {
			if contentID == "B" {
				return &services.APIError{Op: "PUT /rating", Status: 404, Kind: services.KindPermanent, Message: "not found"}
			}
			mu.Lock()
			set[contentID] = rating
			mu.Unlock()
			return nil
		},
	}

	engine := newTestEngine(t, svc, nil)
	result, err := engine.Import(context.Background(), dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	c := result.Ratings
	if c.Total != 2 || c.Added != 1 || c.Failed != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if set["A"] != models.FiveStars {
		t.Errorf("expected A rated FiveStars, got %q", set["A"])
	}
}

func TestImportHistory(t *testing.T) {
	dir := t.TempDir()
	writeTestSnapshots(t, dir, Snapshots{
		History: &models.WatchHistoryExport{
			Metadata: models.ExportMetadata{ProfileName: "test", TotalCount: 3},
			Items: []models.WatchHistoryItem{
				{ContentID: "E1", SeriesTitle: "Show", Title: "Ep 1"},
				{ContentID: "E2", SeriesTitle: "Show", Title: "Ep 2"},
				{ContentID: "E3", SeriesTitle: "Show"},
			},
		},
	})

	var mu sync.Mutex
	marked := make(map[string]int)
	svc := &mockService{
		// E1 is already in the target history
		watchHistory: func(ctx context.Context) (services.HistoryStream, error) {
			return &sliceStream{items: []streamItem{
				{entry: &services.HistoryEntry{Item: models.WatchHistoryItem{ContentID: "E1"}}},
			}}, nil
		},
		markWatched: func(ctx context.Context, contentID string) error {
			mu.Lock()
			marked[contentID]++
			mu.Unlock()
			return nil
		},
	}

	engine := newTestEngine(t, svc, nil)
	result, err := engine.Import(context.Background(), dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	c := result.History
	if c.Total != 3 || c.Added != 2 || c.AlreadyPresent != 1 || c.Failed != 0 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if marked["E1"] != 0 {
		t.Error("entry already in target history was written")
	}
	if marked["E2"] != 1 || marked["E3"] != 1 {
		t.Errorf("unexpected writes: %v", marked)
	}
}

func TestImportCancellation(t *testing.T) {
	dir := t.TempDir()
	writeTestSnapshots(t, dir, Snapshots{
		Watchlist: watchlistSnapshot("A", "B", "C", "D", "E", "F", "G", "H"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	writes := 0
	svc := &mockService{
		addToWatchlist: func(ctx context.Context, contentID string) error {
			mu.Lock()
			writes++
			if writes == 2 {
				cancel()
			}
			mu.Unlock()
			return nil
		},
	}

	engine := newTestEngine(t, svc, nil)
	done := make(chan struct{})
	var importErr error
	go func() {
		defer close(done)
		_, importErr = engine.Import(ctx, dir)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("import did not unwind after cancellation")
	}
	if importErr == nil {
		t.Error("expected a context error from a cancelled import")
	}
}

func TestImportEmitsDone(t *testing.T) {
	dir := t.TempDir()
	writeTestSnapshots(t, dir, Snapshots{})

	reporter := NewChannelReporter(64)
	engine := newTestEngine(t, &mockService{}, reporter)

	if _, err := engine.Import(context.Background(), dir); err != nil {
		t.Fatalf("import: %v", err)
	}

	sawDone := false
drain:
	for {
		select {
		case e := <-reporter.Events():
			if e.Kind == EventDone {
				sawDone = true
			}
		default:
			break drain
		}
	}
	if !sawDone {
		t.Error("expected a Done event after import")
	}
}
