package jellyfin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Item types and location types used when listing a user's library.
const (
	ItemTypeMovie   = "Movie"
	ItemTypeEpisode = "Episode"

	LocationTypeVirtual = "Virtual"

	ImageTypePrimary  = "Primary"
	ImageTypeBackdrop = "Backdrop"

	StreamTypeSubtitle = "Subtitle"
)

// QuickConnectResult is returned by QuickConnect/Initiate and QuickConnect/Connect.
type QuickConnectResult struct {
	Authenticated bool   `json:"Authenticated"`
	Secret        string `json:"Secret"`
	Code          string `json:"Code"`
	DeviceID      string `json:"DeviceId,omitempty"`
	DeviceName    string `json:"DeviceName,omitempty"`
	AppName       string `json:"AppName,omitempty"`
}

// User is the subset of UserDto used by the gateway.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// AuthenticationResult is returned by Users/AuthenticateWithQuickConnect.
type AuthenticationResult struct {
	User        *User  `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId,omitempty"`
}

// ClientCapabilities is posted to Sessions/Capabilities/Full.
type ClientCapabilities struct {
	PlayableMediaTypes           []string `json:"PlayableMediaTypes"`
	SupportedCommands            []string `json:"SupportedCommands"`
	SupportsMediaControl         bool     `json:"SupportsMediaControl"`
	SupportsContentUploading     bool     `json:"SupportsContentUploading"`
	SupportsPersistentIdentifier bool     `json:"SupportsPersistentIdentifier"`
	SupportsSync                 bool     `json:"SupportsSync"`
	AppStoreURL                  string   `json:"AppStoreUrl,omitempty"`
	IconURL                      string   `json:"IconUrl,omitempty"`
}

// ItemsResult is a page of items.
type ItemsResult struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// Item is the subset of BaseItemDto the library mapping reads.
type Item struct {
	ID                string        `json:"Id"`
	Name              string        `json:"Name"`
	Type              string        `json:"Type"`
	LocationType      string        `json:"LocationType,omitempty"`
	Overview          string        `json:"Overview,omitempty"`
	RunTimeTicks      int64         `json:"RunTimeTicks,omitempty"`
	PremiereDate      *Date         `json:"PremiereDate,omitempty"`
	DateCreated       *Date         `json:"DateCreated,omitempty"`
	ProductionYear    int           `json:"ProductionYear,omitempty"`
	CommunityRating   *float64      `json:"CommunityRating,omitempty"`
	Genres            []string      `json:"Genres,omitempty"`
	Tags              []string      `json:"Tags,omitempty"`
	Studios           []NameIDPair  `json:"Studios,omitempty"`
	SeriesName        string        `json:"SeriesName,omitempty"`
	SeriesStudio      string        `json:"SeriesStudio,omitempty"`
	SeasonName        string        `json:"SeasonName,omitempty"`
	ParentIndexNumber *int          `json:"ParentIndexNumber,omitempty"`
	IndexNumber       *int          `json:"IndexNumber,omitempty"`
	People            []Person      `json:"People,omitempty"`
	Chapters          []Chapter     `json:"Chapters,omitempty"`
	MediaSources      []MediaSource `json:"MediaSources,omitempty"`
	UserData          *UserData     `json:"UserData,omitempty"`
}

// NameIDPair is a named reference such as a studio.
type NameIDPair struct {
	Name string `json:"Name"`
	ID   string `json:"Id,omitempty"`
}

// Person is a cast or crew member.
type Person struct {
	Name string `json:"Name"`
	ID   string `json:"Id,omitempty"`
	Role string `json:"Role,omitempty"`
	Type string `json:"Type,omitempty"`
}

// Chapter is a chapter marker.
type Chapter struct {
	StartPositionTicks int64  `json:"StartPositionTicks"`
	Name               string `json:"Name,omitempty"`
}

// MediaSource is one playable version of an item.
type MediaSource struct {
	ID             string        `json:"Id"`
	Container      string        `json:"Container,omitempty"`
	Name           string        `json:"Name,omitempty"`
	Size           int64         `json:"Size,omitempty"`
	TranscodingURL string        `json:"TranscodingUrl,omitempty"`
	MediaStreams   []MediaStream `json:"MediaStreams,omitempty"`
}

// MediaStream is an audio, video or subtitle stream of a media source.
type MediaStream struct {
	Type                 string `json:"Type"`
	Index                int    `json:"Index"`
	Codec                string `json:"Codec,omitempty"`
	Language             string `json:"Language,omitempty"`
	DisplayTitle         string `json:"DisplayTitle,omitempty"`
	IsTextSubtitleStream bool   `json:"IsTextSubtitleStream"`
	IsExternal           bool   `json:"IsExternal"`
	Width                int    `json:"Width,omitempty"`
	Height               int    `json:"Height,omitempty"`
}

// UserData holds the per-user state of an item.
type UserData struct {
	Played                bool  `json:"Played"`
	IsFavorite            bool  `json:"IsFavorite"`
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
}

// PlaybackInfoResponse is returned by Items/{id}/PlaybackInfo.
type PlaybackInfoResponse struct {
	MediaSources  []MediaSource `json:"MediaSources"`
	PlaySessionID string        `json:"PlaySessionId"`
	ErrorCode     string        `json:"ErrorCode,omitempty"`
}

// PlaybackStartInfo is posted to Sessions/Playing.
type PlaybackStartInfo struct {
	ItemID        string `json:"ItemId"`
	PlaySessionID string `json:"PlaySessionId"`
	MediaSourceID string `json:"MediaSourceId,omitempty"`
	PositionTicks int64  `json:"PositionTicks"`
	IsPaused      bool   `json:"IsPaused"`
	CanSeek       bool   `json:"CanSeek"`
	PlayMethod    string `json:"PlayMethod"`
}

// PlaybackProgressInfo is posted to Sessions/Playing/Progress.
type PlaybackProgressInfo struct {
	ItemID                 string `json:"ItemId"`
	PlaySessionID          string `json:"PlaySessionId"`
	PositionTicks          int64  `json:"PositionTicks"`
	IsPaused               bool   `json:"IsPaused"`
	CanSeek                bool   `json:"CanSeek"`
	PlayMethod             string `json:"PlayMethod"`
	PlaybackStartTimeTicks int64  `json:"PlaybackStartTimeTicks,omitempty"`
}

// PlaybackStopInfo is posted to Sessions/Playing/Stopped.
type PlaybackStopInfo struct {
	ItemID        string `json:"ItemId"`
	PlaySessionID string `json:"PlaySessionId"`
	PositionTicks int64  `json:"PositionTicks"`
}

// PlayMethodTranscode is the play method reported for HLS playback.
const PlayMethodTranscode = "Transcode"

// Date is a timestamp that tolerates the formats Jellyfin emits: RFC 3339
// with up to seven fractional digits, the same without a zone, or a bare date.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.RFC3339Nano))
}
