// package services defines interface Service for interacting with streaming library APIs
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/crx/internal/models"
)

// Service defines the operations a streaming account must support for
// library capture and reconciliation.
type Service interface {
	// Name returns the display name of the service.
	Name() string

	// ProfileName returns the name of the active profile.
	ProfileName() string

	// AccountID returns the account identifier backing content endpoints.
	AccountID(ctx context.Context) (string, error)

	// FetchWatchlist retrieves every watchlist entry across all pages.
	FetchWatchlist(ctx context.Context) ([]WatchlistEntry, error)

	// WatchHistory opens a stream over the full watch history.
	WatchHistory(ctx context.Context) (HistoryStream, error)

	// ListCollections retrieves all named lists with their entries.
	ListCollections(ctx context.Context) ([]Collection, error)

	// CreateCollection creates an empty named list and returns its ID.
	CreateCollection(ctx context.Context, name string) (string, error)

	// AddToCollection adds one item to a named list.
	AddToCollection(ctx context.Context, listID, contentID string) error

	// AddToWatchlist adds one item to the watchlist.
	AddToWatchlist(ctx context.Context, contentID string) error

	// GetRating retrieves the star rating for an item, or "" when unrated.
	GetRating(ctx context.Context, contentType, contentID string) (string, error)

	// SetRating assigns a star rating to an item.
	SetRating(ctx context.Context, contentType, contentID, rating string) error

	// MarkWatched marks an episode or movie as fully watched. Marking an
	// already-watched item succeeds.
	MarkWatched(ctx context.Context, contentID string) error
}

// Credentials identifies one account and profile for login.
type Credentials struct {
	Email    string
	Password string
	Profile  string

	// CreateMissingProfile creates the named profile when the account does
	// not have it, instead of failing the login.
	CreateMissingProfile bool
}

// Connector opens authenticated sessions. The run commands hold a source
// and a target connector and log in lazily, so a snapshot-only command
// never touches the target account.
type Connector interface {
	Login(ctx context.Context, creds Credentials) (Service, error)
}

// WatchlistEntry is one watchlist item as returned by the account API.
type WatchlistEntry struct {
	Item         models.WatchlistItem
	NeverWatched bool
}

// HistoryEntry is one watch history item as returned by the account API.
type HistoryEntry struct {
	Item    models.WatchHistoryItem
	Partial bool
}

// Collection is one named list with its resolved entries.
type Collection struct {
	ID    string
	Name  string
	Items []models.CrunchylistItem
}

// EntryDecodeError reports a single malformed entry inside an otherwise
// valid paginated response. Streams return it per entry and keep going.
type EntryDecodeError struct {
	Page  int
	Index int
	Err   error
}

func (e *EntryDecodeError) Error() string {
	return fmt.Sprintf("decoding entry %d on page %d: %v", e.Index, e.Page, e.Err)
}

func (e *EntryDecodeError) Unwrap() error { return e.Err }

// HistoryStream iterates watch history entries page by page.
//
// Next returns [io.EOF] after the final entry. A [*EntryDecodeError] marks
// one undecodable entry; the stream remains usable and the next call
// resumes with the following entry.
type HistoryStream interface {
	Next(ctx context.Context) (*HistoryEntry, error)
}
