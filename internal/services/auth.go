package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/crx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	tokenEndpoint    = "/auth/v1/token"
	profilesEndpoint = "/accounts/v1/me/multiprofile"

	// Public identifier of the web client, sent as Basic auth on token
	// requests. There is no secret.
	webClientID = "cr_web"

	deviceType = "Chrome on Linux"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	AccountID    string `json:"account_id"`
	ProfileID    string `json:"profile_id"`
}

// Profile is one account profile.
type Profile struct {
	ID        string `json:"profile_id"`
	Name      string `json:"profile_name"`
	Username  string `json:"username"`
	IsPrimary bool   `json:"is_primary"`
}

// ProfileManager is implemented by services that can manage account profiles.
type ProfileManager interface {
	Profiles(ctx context.Context) ([]Profile, error)
	CreateProfile(ctx context.Context, name string) (*Profile, error)
	RenameProfile(ctx context.Context, profileID, newName string) error
}

// ConnectorOpts configures a [CrunchyrollConnector]. Zero values fall back to
// the production endpoint and default pacing.
type ConnectorOpts struct {
	BaseURL    string
	ReadRate   float64
	PageSize   int
	HTTPClient *http.Client
}

// CrunchyrollConnector opens profile-scoped Crunchyroll sessions.
type CrunchyrollConnector struct {
	baseURL    string
	readRate   float64
	pageSize   int
	httpClient *http.Client
}

// NewCrunchyrollConnector creates a connector with the given options.
func NewCrunchyrollConnector(opts ConnectorOpts) *CrunchyrollConnector {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ReadRate <= 0 {
		opts.ReadRate = defaultReadRate
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &CrunchyrollConnector{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		readRate:   opts.ReadRate,
		pageSize:   opts.PageSize,
		httpClient: opts.HTTPClient,
	}
}

// Login authenticates with email and password, resolves the requested
// profile, and returns a session scoped to it. An empty profile name selects
// the primary profile. When [Credentials.CreateMissingProfile] is set, a
// profile that does not exist is created before switching.
func (c *CrunchyrollConnector) Login(ctx context.Context, creds Credentials) (Service, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrMissingCredentials)
	}

	deviceID := shared.GenerateDeviceID()

	tok, err := c.passwordGrant(ctx, creds.Email, creds.Password, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	profiles, err := c.fetchProfiles(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, shared.ErrNoProfiles
	}

	profile, err := c.resolveProfile(ctx, tok.AccessToken, profiles, creds)
	if err != nil {
		return nil, err
	}

	profileTok, err := c.refreshGrant(ctx, tok.RefreshToken, profile.ID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: switching to profile %q: %v", shared.ErrAuthFailed, profile.Name, err)
	}

	src := &refreshTokenSource{
		conn:         c,
		refreshToken: profileTok.RefreshToken,
		profileID:    profile.ID,
		deviceID:     deviceID,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(oauthToken(profileTok), src))

	return &CrunchyrollService{
		baseURL:     c.baseURL,
		httpClient:  client,
		limiter:     rate.NewLimiter(rate.Limit(c.readRate), 1),
		pageSize:    c.pageSize,
		profileName: profile.Name,
	}, nil
}

func (c *CrunchyrollConnector) resolveProfile(ctx context.Context, accessToken string, profiles []Profile, creds Credentials) (*Profile, error) {
	if creds.Profile == "" {
		for i := range profiles {
			if profiles[i].IsPrimary {
				return &profiles[i], nil
			}
		}
		return &profiles[0], nil
	}

	for i := range profiles {
		if strings.EqualFold(profiles[i].Name, creds.Profile) {
			return &profiles[i], nil
		}
	}

	if creds.CreateMissingProfile {
		return c.createProfile(ctx, accessToken, creds.Profile)
	}

	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", shared.ErrProfileNotFound, creds.Profile, strings.Join(names, ", "))
}

// passwordGrant exchanges account credentials for a session token.
func (c *CrunchyrollConnector) passwordGrant(ctx context.Context, email, password, deviceID string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":  {"password"},
		"username":    {email},
		"password":    {password},
		"scope":       {"offline_access"},
		"device_id":   {deviceID},
		"device_type": {deviceType},
	}
	return c.tokenRequest(ctx, form)
}

// refreshGrant exchanges a refresh token for a session scoped to a profile.
func (c *CrunchyrollConnector) refreshGrant(ctx context.Context, refreshToken, profileID, deviceID string) (*tokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token_profile_id"},
		"refresh_token": {refreshToken},
		"profile_id":    {profileID},
		"scope":         {"offline_access"},
		"device_id":     {deviceID},
		"device_type":   {deviceType},
	}
	return c.tokenRequest(ctx, form)
}

func (c *CrunchyrollConnector) tokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(webClientID, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &APIError{
			Op:      "POST " + tokenEndpoint,
			Status:  resp.StatusCode,
			Kind:    classifyStatus(resp.StatusCode, resp.Header.Get("Content-Type")),
			Message: string(snippet),
		}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &tok, nil
}

func (c *CrunchyrollConnector) fetchProfiles(ctx context.Context, accessToken string) ([]Profile, error) {
	var resp struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.doAuthedRequest(ctx, accessToken, http.MethodGet, profilesEndpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

func (c *CrunchyrollConnector) createProfile(ctx context.Context, accessToken, name string) (*Profile, error) {
	body := map[string]string{
		"profile_name": name,
		"username":     profileUsername(name),
	}
	var profile Profile
	if err := c.doAuthedRequest(ctx, accessToken, http.MethodPost, profilesEndpoint, body, &profile); err != nil {
		return nil, fmt.Errorf("creating profile %q: %w", name, err)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return &profile, nil
}

func (c *CrunchyrollConnector) doAuthedRequest(ctx context.Context, accessToken, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
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

// profileUsername derives the handle sent on profile creation.
func profileUsername(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// refreshTokenSource mints fresh access tokens from the rotating refresh
// token. [oauth2.ReuseTokenSource] serializes calls, so the rotation is safe
// without extra locking.
type refreshTokenSource struct {
	conn         *CrunchyrollConnector
	refreshToken string
	profileID    string
	deviceID     string
}

func (s *refreshTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.conn.refreshGrant(context.Background(), s.refreshToken, s.profileID, s.deviceID)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	return oauthToken(tok), nil
}

func oauthToken(tok *tokenResponse) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
}

// Profiles lists the account's profiles.
func (s *CrunchyrollService) Profiles(ctx context.Context) ([]Profile, error) {
	var resp struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := s.doRequest(ctx, http.MethodGet, profilesEndpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// CreateProfile creates a new account profile. Accounts without a
// multi-profile plan receive a permanent error from the API.
func (s *CrunchyrollService) CreateProfile(ctx context.Context, name string) (*Profile, error) {
	body := map[string]string{
		"profile_name": name,
		"username":     profileUsername(name),
	}
	var profile Profile
	if err := s.doRequest(ctx, http.MethodPost, profilesEndpoint, body, &profile); err != nil {
		return nil, fmt.Errorf("creating profile %q: %w", name, err)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return &profile, nil
}

// RenameProfile changes the display name of an existing profile.
func (s *CrunchyrollService) RenameProfile(ctx context.Context, profileID, newName string) error {
	endpoint := fmt.Sprintf("%s/%s", profilesEndpoint, profileID)
	body := map[string]string{"profile_name": newName}
	if err := s.doRequest(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("renaming profile: %w", err)
	}
	return nil
}
