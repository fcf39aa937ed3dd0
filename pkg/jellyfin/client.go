package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Errors returned by the client.
var (
	// ErrUpstreamUnavailable wraps transport failures and unexpected statuses.
	ErrUpstreamUnavailable = errors.New("jellyfin unavailable")

	// ErrUnauthorized indicates the server rejected the access token.
	ErrUnauthorized = errors.New("jellyfin rejected credentials")
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultClientName = "jellyvr"
	DefaultDeviceName = "Unknown VR HMD"

	// TicksPerMillisecond converts milliseconds to Jellyfin's 100ns ticks.
	TicksPerMillisecond = 10000

	headerAuthorization = "X-Emby-Authorization"
	headerUserAgent     = "User-Agent"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"

	maxErrorBodyReadSize = 1024
)

// API paths.
const (
	pathQuickConnectInitiate = "/QuickConnect/Initiate"
	pathQuickConnectConnect  = "/QuickConnect/Connect"
	pathAuthQuickConnect     = "/Users/AuthenticateWithQuickConnect"
	pathCapabilitiesFull     = "/Sessions/Capabilities/Full"
	pathPlaying              = "/Sessions/Playing"
	pathPlayingProgress      = "/Sessions/Playing/Progress"
	pathPlayingStopped       = "/Sessions/Playing/Stopped"
)

// libraryFields are the optional item fields requested when listing a library.
var libraryFields = []string{
	"DateCreated", "MediaSources", "BasicSyncInfo", "Genres", "Tags", "Studios",
	"SeriesStudio", "People", "Chapters", "Overview",
}

// Client is a Jellyfin API client. It holds no user state; calls that act
// on behalf of a user take the access token explicitly.
type Client struct {
	// BaseURL is the server base URL without a trailing slash.
	BaseURL string

	// HTTPClient is used for every request. Defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	ClientName    string
	ClientVersion string
	DeviceName    string
	DeviceID      string
	UserAgent     string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Jellyfin API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		ClientName:    DefaultClientName,
		ClientVersion: "0.0.0",
		DeviceName:    DefaultDeviceName,
		DeviceID:      DefaultClientName,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets the HTTP client, e.g. a resilient httpclient.Client's
// StandardClient().
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithDevice sets the device name and id reported to Jellyfin.
func WithDevice(name, id string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.DeviceName = name
		}
		if id != "" {
			c.DeviceID = id
		}
	}
}

// WithClientVersion sets the client version reported to Jellyfin.
func WithClientVersion(v string) ClientOption {
	return func(c *Client) {
		c.ClientVersion = v
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// AuthorizationHeader returns the X-Emby-Authorization value, with the
// token appended when non-empty.
func (c *Client) AuthorizationHeader(token string) string {
	h := fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		c.ClientName, c.DeviceName, c.DeviceID, c.ClientVersion)
	if token != "" {
		h += fmt.Sprintf(`, Token="%s"`, token)
	}
	return h
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doRequest performs a request and decodes a JSON response into target
// when target is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, token string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set(headerAuthorization, c.AuthorizationHeader(token))
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if c.UserAgent != "" {
		req.Header.Set(headerUserAgent, c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %w", ErrUpstreamUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
		sentinel := ErrUpstreamUnavailable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			sentinel = ErrUnauthorized
		}
		return fmt.Errorf("%w: %s %s: status %d: %s", sentinel, method, path, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrUpstreamUnavailable, path, err)
	}

	return nil
}

// InitiateQuickConnect starts a Quick Connect pairing and returns its secret
// and user-facing code.
func (c *Client) InitiateQuickConnect(ctx context.Context) (*QuickConnectResult, error) {
	var result QuickConnectResult
	if err := c.doRequest(ctx, http.MethodGet, pathQuickConnectInitiate, nil, "", nil, &result); err != nil {
		return nil, err
	}
	if result.Secret == "" || result.Code == "" {
		return nil, fmt.Errorf("%w: quick connect response missing secret or code", ErrUpstreamUnavailable)
	}
	return &result, nil
}

// QuickConnectApproved reports whether the code for secret has been approved.
func (c *Client) QuickConnectApproved(ctx context.Context, secret string) (bool, error) {
	var result QuickConnectResult
	query := url.Values{"Secret": {secret}}
	if err := c.doRequest(ctx, http.MethodGet, pathQuickConnectConnect, query, "", nil, &result); err != nil {
		return false, err
	}
	return result.Authenticated, nil
}

// AuthenticateWithQuickConnect exchanges an approved secret for an access token.
func (c *Client) AuthenticateWithQuickConnect(ctx context.Context, secret string) (*AuthenticationResult, error) {
	var result AuthenticationResult
	body := map[string]string{"Secret": secret}
	if err := c.doRequest(ctx, http.MethodPost, pathAuthQuickConnect, nil, "", body, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" || result.User == nil || result.User.ID == "" {
		return nil, fmt.Errorf("%w: authentication response missing token or user", ErrUpstreamUnavailable)
	}
	return &result, nil
}

// ReportCapabilities registers the session's playback capabilities.
func (c *Client) ReportCapabilities(ctx context.Context, token string, caps ClientCapabilities) error {
	if caps.PlayableMediaTypes == nil {
		caps.PlayableMediaTypes = []string{"Video"}
	}
	if caps.SupportedCommands == nil {
		caps.SupportedCommands = []string{}
	}
	return c.doRequest(ctx, http.MethodPost, pathCapabilitiesFull, nil, token, caps, nil)
}

// UserItems lists every movie and episode visible to the user, sorted by name.
func (c *Client) UserItems(ctx context.Context, userID, token string) (*ItemsResult, error) {
	query := url.Values{
		"SortBy":           {"SortName,ProductionYear"},
		"SortOrder":        {"Ascending"},
		"IncludeItemTypes": {ItemTypeMovie + "," + ItemTypeEpisode},
		"Recursive":        {"true"},
		"Fields":           {strings.Join(libraryFields, ",")},
		"ImageTypeLimit":   {"1"},
		"EnableImageTypes": {ImageTypePrimary + "," + ImageTypeBackdrop},
		"StartIndex":       {"0"},
		"IsMissing":        {"false"},
		"EnableUserData":   {"true"},
	}

	var result ItemsResult
	path := "/Users/" + url.PathEscape(userID) + "/Items"
	if err := c.doRequest(ctx, http.MethodGet, path, query, token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PlaybackInfo opens a play session for an item and returns its media sources.
func (c *Client) PlaybackInfo(ctx context.Context, userID, itemID, token string) (*PlaybackInfoResponse, error) {
	var result PlaybackInfoResponse
	path := "/Items/" + url.PathEscape(itemID) + "/PlaybackInfo"
	query := url.Values{"UserId": {userID}}
	if err := c.doRequest(ctx, http.MethodGet, path, query, token, nil, &result); err != nil {
		return nil, err
	}
	if result.PlaySessionID == "" {
		return nil, fmt.Errorf("%w: playback info for %s has no play session", ErrUpstreamUnavailable, itemID)
	}
	return &result, nil
}

// ReportPlaybackStart reports that playback of a play session began.
func (c *Client) ReportPlaybackStart(ctx context.Context, token string, info PlaybackStartInfo) error {
	if info.PlayMethod == "" {
		info.PlayMethod = PlayMethodTranscode
	}
	return c.doRequest(ctx, http.MethodPost, pathPlaying, nil, token, info, nil)
}

// ReportPlaybackProgress reports the current position of a play session.
func (c *Client) ReportPlaybackProgress(ctx context.Context, token string, info PlaybackProgressInfo) error {
	if info.PlayMethod == "" {
		info.PlayMethod = PlayMethodTranscode
	}
	return c.doRequest(ctx, http.MethodPost, pathPlayingProgress, nil, token, info, nil)
}

// ReportPlaybackStopped reports that a play session ended.
func (c *Client) ReportPlaybackStopped(ctx context.Context, token string, info PlaybackStopInfo) error {
	return c.doRequest(ctx, http.MethodPost, pathPlayingStopped, nil, token, info, nil)
}

// MsToTicks converts milliseconds to ticks.
func MsToTicks(ms int64) int64 {
	return ms * TicksPerMillisecond
}

// TicksToMs converts ticks to milliseconds.
func TicksToMs(ticks int64) int64 {
	return ticks / TicksPerMillisecond
}

// TimeToTicks converts a wall-clock time to Unix ticks, the unit of
// PlaybackStartTimeTicks.
func TimeToTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return MsToTicks(t.UnixMilli())
}
