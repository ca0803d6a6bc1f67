// Crunchyroll implementation of [Service]
//
// Endpoint shapes based on the public web client's content APIs.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/crx/internal/models"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://www.crunchyroll.com"
	defaultPageSize = 100
	defaultReadRate = 4.0
)

// Star ratings on the wire use short codes; snapshots use the long labels.
var ratingLabels = map[string]string{
	"1s": models.OneStar,
	"2s": models.TwoStars,
	"3s": models.ThreeStars,
	"4s": models.FourStars,
	"5s": models.FiveStars,
}

var ratingCodes = map[string]string{
	models.OneStar:    "1s",
	models.TwoStars:   "2s",
	models.ThreeStars: "3s",
	models.FourStars:  "4s",
	models.FiveStars:  "5s",
}

type paginatedResponse struct {
	Total int               `json:"total"`
	Data  []json.RawMessage `json:"data"`
}

type episodeMetadata struct {
	SeriesID        string `json:"series_id"`
	SeriesTitle     string `json:"series_title"`
	SeriesSlugTitle string `json:"series_slug_title"`
}

type movieMetadata struct {
	MovieListingID        string `json:"movie_listing_id"`
	MovieListingTitle     string `json:"movie_listing_title"`
	MovieListingSlugTitle string `json:"movie_listing_slug_title"`
}

// panel is the media card attached to watchlist, history, and list entries.
type panel struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Title           string           `json:"title"`
	SlugTitle       string           `json:"slug_title"`
	EpisodeMetadata *episodeMetadata `json:"episode_metadata"`
	MovieMetadata   *movieMetadata   `json:"movie_metadata"`
}

// seriesInfo resolves a panel to its top-level series or movie listing.
// Panels for unsupported media kinds resolve to ok == false.
func (p *panel) seriesInfo() (id, title, slug, contentType string, ok bool) {
	switch p.Type {
	case "episode":
		if p.EpisodeMetadata == nil {
			return "", "", "", "", false
		}
		m := p.EpisodeMetadata
		return m.SeriesID, m.SeriesTitle, m.SeriesSlugTitle, models.ContentTypeSeries, true
	case "movie":
		if p.MovieMetadata == nil {
			return "", "", "", "", false
		}
		m := p.MovieMetadata
		return m.MovieListingID, m.MovieListingTitle, m.MovieListingSlugTitle, models.ContentTypeMovieListing, true
	case models.ContentTypeSeries:
		return p.ID, p.Title, p.SlugTitle, models.ContentTypeSeries, true
	case models.ContentTypeMovieListing:
		return p.ID, p.Title, p.SlugTitle, models.ContentTypeMovieListing, true
	default:
		return "", "", "", "", false
	}
}

func (p *panel) seriesTitle() string {
	switch p.Type {
	case "episode":
		if p.EpisodeMetadata != nil {
			return p.EpisodeMetadata.SeriesTitle
		}
	case "movie":
		if p.MovieMetadata != nil {
			return p.MovieMetadata.MovieListingTitle
		}
	}
	return p.Title
}

type watchlistEntry struct {
	Panel        panel `json:"panel"`
	IsFavorite   bool  `json:"is_favorite"`
	FullyWatched bool  `json:"fully_watched"`
	NeverWatched bool  `json:"never_watched"`
}

type historyEntry struct {
	ID           string `json:"id"`
	ParentID     string `json:"parent_id"`
	ParentType   string `json:"parent_type"`
	DatePlayed   string `json:"date_played"`
	Playhead     int    `json:"playhead"`
	FullyWatched bool   `json:"fully_watched"`
	Panel        *panel `json:"panel"`
}

type customListMeta struct {
	ListID string `json:"list_id"`
	Title  string `json:"title"`
	Total  int    `json:"total"`
}

type customListEntry struct {
	Panel panel `json:"panel"`
}

type ratingResponse struct {
	Rating string `json:"rating"`
}

// CrunchyrollService implements [Service] over the Crunchyroll content APIs.
// The HTTP client refreshes its session token transparently; paginated reads
// are paced through a [rate.Limiter] so full-library captures stay under the
// service's request ceiling.
type CrunchyrollService struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	pageSize    int
	profileName string
	accountID   string
	externalID  string
}

func (s *CrunchyrollService) Name() string { return "Crunchyroll" }

func (s *CrunchyrollService) ProfileName() string { return s.profileName }

// AccountID returns the external account ID used by the content endpoints.
func (s *CrunchyrollService) AccountID(ctx context.Context) (string, error) {
	if s.externalID != "" {
		return s.externalID, nil
	}

	var me struct {
		AccountID  string `json:"account_id"`
		ExternalID string `json:"external_id"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/accounts/v1/me", nil, &me); err != nil {
		return "", err
	}
	s.accountID = me.AccountID
	s.externalID = me.ExternalID
	return s.externalID, nil
}

// doRequest performs an authenticated HTTP request against the API.
// Non-2xx responses become an [*APIError] classified for retry decisions.
func (s *CrunchyrollService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	apiURL := s.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &APIError{
			Op:      fmt.Sprintf("%s %s", method, endpoint),
			Status:  resp.StatusCode,
			Kind:    classifyStatus(resp.StatusCode, resp.Header.Get("Content-Type")),
			Message: string(snippet),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// fetchPage runs one rate-limited GET of a paginated endpoint.
func (s *CrunchyrollService) fetchPage(ctx context.Context, endpoint string) (*paginatedResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var page paginatedResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchWatchlist retrieves every watchlist entry. Entries whose panel cannot
// be resolved to a series or movie listing are dropped.
func (s *CrunchyrollService) FetchWatchlist(ctx context.Context) ([]WatchlistEntry, error) {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return nil, err
	}

	var entries []WatchlistEntry
	start := 0
	for {
		endpoint := fmt.Sprintf("/content/v2/discover/%s/watchlist?page_size=%d&start=%d", accountID, s.pageSize, start)
		page, err := s.fetchPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Data {
			var entry watchlistEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			id, title, slug, contentType, ok := entry.Panel.seriesInfo()
			if !ok {
				continue
			}
			entries = append(entries, WatchlistEntry{
				Item: models.WatchlistItem{
					ContentID:    id,
					Title:        title,
					Slug:         slug,
					ContentType:  contentType,
					IsFavourite:  entry.IsFavorite,
					FullyWatched: entry.FullyWatched,
				},
				NeverWatched: entry.NeverWatched,
			})
		}

		start += len(page.Data)
		if len(page.Data) == 0 || start >= page.Total {
			break
		}
	}
	return entries, nil
}

// WatchHistory opens a page-by-page stream over the watch history.
func (s *CrunchyrollService) WatchHistory(ctx context.Context) (HistoryStream, error) {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	return &crunchyrollHistoryStream{svc: s, accountID: accountID, page: 1}, nil
}

type crunchyrollHistoryStream struct {
	svc       *CrunchyrollService
	accountID string
	page      int
	buf       []json.RawMessage
	idx       int
	exhausted bool
}

func (st *crunchyrollHistoryStream) Next(ctx context.Context) (*HistoryEntry, error) {
	for {
		if st.idx < len(st.buf) {
			raw := st.buf[st.idx]
			i := st.idx
			st.idx++

			var entry historyEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil, &EntryDecodeError{Page: st.page - 1, Index: i, Err: err}
			}
			return st.convert(&entry), nil
		}

		if st.exhausted {
			return nil, io.EOF
		}
		if err := st.fetch(ctx); err != nil {
			return nil, err
		}
	}
}

func (st *crunchyrollHistoryStream) fetch(ctx context.Context) error {
	endpoint := fmt.Sprintf("/content/v2/%s/watch-history?page_size=%d&page=%d", st.accountID, st.svc.pageSize, st.page)
	page, err := st.svc.fetchPage(ctx, endpoint)
	if err != nil {
		return err
	}
	st.buf = page.Data
	st.idx = 0
	st.page++
	if len(page.Data) < st.svc.pageSize {
		st.exhausted = true
	}
	return nil
}

func (st *crunchyrollHistoryStream) convert(entry *historyEntry) *HistoryEntry {
	out := &HistoryEntry{
		Item: models.WatchHistoryItem{
			ContentID:    entry.ID,
			ParentID:     entry.ParentID,
			ParentType:   entry.ParentType,
			Playhead:     entry.Playhead,
			FullyWatched: entry.FullyWatched,
		},
	}
	out.Item.DatePlayed, _ = parseTimestamp(entry.DatePlayed)

	if entry.Panel == nil {
		out.Partial = true
		out.Item.Partial = true
		return out
	}
	out.Item.Title = entry.Panel.Title
	out.Item.SeriesTitle = entry.Panel.seriesTitle()
	return out
}

// ListCollections retrieves every named list with its resolved entries.
func (s *CrunchyrollService) ListCollections(ctx context.Context) ([]Collection, error) {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return nil, err
	}

	var collections []Collection
	start := 0
	for {
		endpoint := fmt.Sprintf("/content/v2/%s/custom-lists?page_size=%d&start=%d", accountID, s.pageSize, start)
		page, err := s.fetchPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Data {
			var meta customListMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				continue
			}

			items, err := s.collectionItems(ctx, accountID, meta.ListID)
			if err != nil {
				return nil, fmt.Errorf("fetching list %q: %w", meta.Title, err)
			}
			collections = append(collections, Collection{ID: meta.ListID, Name: meta.Title, Items: items})
		}

		start += len(page.Data)
		if len(page.Data) == 0 || start >= page.Total {
			break
		}
	}
	return collections, nil
}

func (s *CrunchyrollService) collectionItems(ctx context.Context, accountID, listID string) ([]models.CrunchylistItem, error) {
	var items []models.CrunchylistItem
	start := 0
	for {
		endpoint := fmt.Sprintf("/content/v2/%s/custom-lists/%s?page_size=%d&start=%d", accountID, listID, s.pageSize, start)
		page, err := s.fetchPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Data {
			var entry customListEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			id, title, _, _, ok := entry.Panel.seriesInfo()
			if !ok {
				continue
			}
			items = append(items, models.CrunchylistItem{ContentID: id, Title: title})
		}

		start += len(page.Data)
		if len(page.Data) == 0 || start >= page.Total {
			break
		}
	}
	return items, nil
}

// CreateCollection creates an empty named list and returns its ID.
func (s *CrunchyrollService) CreateCollection(ctx context.Context, name string) (string, error) {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data []struct {
			ListID string `json:"list_id"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("/content/v2/%s/custom-lists", accountID)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]string{"title": name}, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", &APIError{Op: "POST " + endpoint, Kind: KindPermanent, Message: "no list id in response"}
	}
	return resp.Data[0].ListID, nil
}

// AddToCollection adds one item to a named list. A conflict error means the
// item is already on the list.
func (s *CrunchyrollService) AddToCollection(ctx context.Context, listID, contentID string) error {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/content/v2/%s/custom-lists/%s", accountID, listID)
	return s.doRequest(ctx, http.MethodPost, endpoint, map[string]string{"content_id": contentID}, nil)
}

// AddToWatchlist adds one item to the watchlist. A conflict error means the
// item is already on the watchlist.
func (s *CrunchyrollService) AddToWatchlist(ctx context.Context, contentID string) error {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/content/v2/discover/%s/watchlist", accountID)
	return s.doRequest(ctx, http.MethodPost, endpoint, map[string]string{"content_id": contentID}, nil)
}

// GetRating retrieves the star rating for an item as a snapshot label, or ""
// when the item is unrated.
func (s *CrunchyrollService) GetRating(ctx context.Context, contentType, contentID string) (string, error) {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var resp ratingResponse
	endpoint := fmt.Sprintf("/content-reviews/v2/user/%s/rating/%s/%s", accountID, contentType, contentID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", err
	}
	return ratingLabels[resp.Rating], nil
}

// SetRating assigns a star rating, given as a snapshot label.
func (s *CrunchyrollService) SetRating(ctx context.Context, contentType, contentID, rating string) error {
	code, ok := ratingCodes[rating]
	if !ok {
		return &APIError{Op: "rating", Kind: KindPermanent, Message: fmt.Sprintf("unknown rating %q", rating)}
	}

	accountID, err := s.AccountID(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/content-reviews/v2/user/%s/rating/%s/%s", accountID, contentType, contentID)
	return s.doRequest(ctx, http.MethodPut, endpoint, map[string]string{"rating": code}, nil)
}

// MarkWatched marks an episode or movie as fully watched. Marking an item
// that is already watched reports a conflict, which counts as success.
func (s *CrunchyrollService) MarkWatched(ctx context.Context, contentID string) error {
	accountID, err := s.AccountID(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/content/v2/discover/%s/mark_as_watched/%s", accountID, contentID)
	err = s.doRequest(ctx, http.MethodPost, endpoint, nil, nil)
	if err != nil && KindOf(err) == KindConflict {
		return nil
	}
	return err
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
