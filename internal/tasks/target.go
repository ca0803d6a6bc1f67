package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/shared"
)

// TargetState is the live content of a target profile, fetched once before
// an import or diff so every category can pre-filter against it.
type TargetState struct {
	WatchlistIDs map[string]struct{}
	HistoryIDs   map[string]struct{}
	// Crunchylists maps list name to the content IDs already on that list.
	Crunchylists map[string]map[string]struct{}
}

// FetchTargetState reads the target profile's watchlist, history, and named
// lists. History entries that fail to decode are dropped; an unreadable list
// is fatal because reconciliation cannot tell what the list holds.
func (e *SyncEngine) FetchTargetState(ctx context.Context) (*TargetState, error) {
	state := &TargetState{
		WatchlistIDs: make(map[string]struct{}),
		HistoryIDs:   make(map[string]struct{}),
		Crunchylists: make(map[string]map[string]struct{}),
	}

	watchlist, err := e.service.FetchWatchlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching watchlist: %v", shared.ErrTargetState, err)
	}
	for _, entry := range watchlist {
		state.WatchlistIDs[entry.Item.ContentID] = struct{}{}
	}

	stream, err := e.service.WatchHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: opening history: %v", shared.ErrTargetState, err)
	}
	for {
		entry, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		var decodeErr *services.EntryDecodeError
		if errors.As(err, &decodeErr) {
			e.logger.Debug("dropping undecodable history entry", "err", decodeErr)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading history: %v", shared.ErrTargetState, err)
		}
		state.HistoryIDs[entry.Item.ContentID] = struct{}{}
	}

	collections, err := e.service.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrListUnresolved, err)
	}
	for _, collection := range collections {
		ids := make(map[string]struct{}, len(collection.Items))
		for _, item := range collection.Items {
			ids[item.ContentID] = struct{}{}
		}
		state.Crunchylists[collection.Name] = ids
	}

	return state, nil
}
