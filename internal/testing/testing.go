// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"

	"github.com/desertthunder/crx/internal/models"
	"github.com/desertthunder/crx/internal/services"
)

// MockService is a configurable test double for [services.Service]. Nil
// function fields return empty results.
type MockService struct {
	Profile         string
	Account         string
	AccountProfiles []services.Profile

	FetchWatchlistFn   func(ctx context.Context) ([]services.WatchlistEntry, error)
	WatchHistoryFn     func(ctx context.Context) (services.HistoryStream, error)
	ListCollectionsFn  func(ctx context.Context) ([]services.Collection, error)
	CreateCollectionFn func(ctx context.Context, name string) (string, error)
	AddToCollectionFn  func(ctx context.Context, listID, contentID string) error
	AddToWatchlistFn   func(ctx context.Context, contentID string) error
	GetRatingFn        func(ctx context.Context, contentType, contentID string) (string, error)
	SetRatingFn        func(ctx context.Context, contentType, contentID, rating string) error
	MarkWatchedFn      func(ctx context.Context, contentID string) error
	RenameProfileFn    func(ctx context.Context, profileID, newName string) error
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) ProfileName() string {
	if m.Profile == "" {
		return "test"
	}
	return m.Profile
}

func (m *MockService) AccountID(ctx context.Context) (string, error) {
	if m.Account == "" {
		return "acct-mock", nil
	}
	return m.Account, nil
}

func (m *MockService) FetchWatchlist(ctx context.Context) ([]services.WatchlistEntry, error) {
	if m.FetchWatchlistFn != nil {
		return m.FetchWatchlistFn(ctx)
	}
	return nil, nil
}

func (m *MockService) WatchHistory(ctx context.Context) (services.HistoryStream, error) {
	if m.WatchHistoryFn != nil {
		return m.WatchHistoryFn(ctx)
	}
	return EmptyHistoryStream{}, nil
}

func (m *MockService) ListCollections(ctx context.Context) ([]services.Collection, error) {
	if m.ListCollectionsFn != nil {
		return m.ListCollectionsFn(ctx)
	}
	return nil, nil
}

func (m *MockService) CreateCollection(ctx context.Context, name string) (string, error) {
	if m.CreateCollectionFn != nil {
		return m.CreateCollectionFn(ctx, name)
	}
	return "list-mock", nil
}

func (m *MockService) AddToCollection(ctx context.Context, listID, contentID string) error {
	if m.AddToCollectionFn != nil {
		return m.AddToCollectionFn(ctx, listID, contentID)
	}
	return nil
}

func (m *MockService) AddToWatchlist(ctx context.Context, contentID string) error {
	if m.AddToWatchlistFn != nil {
		return m.AddToWatchlistFn(ctx, contentID)
	}
	return nil
}

func (m *MockService) GetRating(ctx context.Context, contentType, contentID string) (string, error) {
	if m.GetRatingFn != nil {
		return m.GetRatingFn(ctx, contentType, contentID)
	}
	return "", nil
}

func (m *MockService) SetRating(ctx context.Context, contentType, contentID, rating string) error {
	if m.SetRatingFn != nil {
		return m.SetRatingFn(ctx, contentType, contentID, rating)
	}
	return nil
}

func (m *MockService) MarkWatched(ctx context.Context, contentID string) error {
	if m.MarkWatchedFn != nil {
		return m.MarkWatchedFn(ctx, contentID)
	}
	return nil
}

// Profiles implements [services.ProfileManager] listing.
func (m *MockService) Profiles(ctx context.Context) ([]services.Profile, error) {
	return m.AccountProfiles, nil
}

// CreateProfile implements [services.ProfileManager] creation with a canned profile.
func (m *MockService) CreateProfile(ctx context.Context, name string) (*services.Profile, error) {
	profile := services.Profile{ID: "profile-mock", Name: name}
	m.AccountProfiles = append(m.AccountProfiles, profile)
	return &profile, nil
}

func (m *MockService) RenameProfile(ctx context.Context, profileID, newName string) error {
	if m.RenameProfileFn != nil {
		return m.RenameProfileFn(ctx, profileID, newName)
	}
	return nil
}

// EmptyHistoryStream is a [services.HistoryStream] with no entries.
type EmptyHistoryStream struct{}

func (EmptyHistoryStream) Next(ctx context.Context) (*services.HistoryEntry, error) {
	return nil, io.EOF
}

// SliceHistoryStream yields canned history entries then EOF.
type SliceHistoryStream struct {
	Entries []services.HistoryEntry
	pos     int
}

func (s *SliceHistoryStream) Next(ctx context.Context) (*services.HistoryEntry, error) {
	if s.pos >= len(s.Entries) {
		return nil, io.EOF
	}
	entry := s.Entries[s.pos]
	s.pos++
	return &entry, nil
}

// MockConnector is a test double for [services.Connector]. It records the
// credentials of every login.
type MockConnector struct {
	Service services.Service
	Err     error
	Logins  []services.Credentials
}

func (c *MockConnector) Login(ctx context.Context, creds services.Credentials) (services.Service, error) {
	c.Logins = append(c.Logins, creds)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Service != nil {
		return c.Service, nil
	}
	return &MockService{}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// WatchlistEntries wraps items as service entries.
func WatchlistEntries(items ...models.WatchlistItem) []services.WatchlistEntry {
	entries := make([]services.WatchlistEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, services.WatchlistEntry{Item: item})
	}
	return entries
}
