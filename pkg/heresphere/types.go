package heresphere

import (
	"fmt"
)

// Protocol header and version.
const (
	HeaderVersion = "HereSphere-JSON-Version"
	Version       = "1"
)

// Access levels reported in Index and VideoData.
const (
	AccessDenied = -1
	AccessMember = 1
)

// Projection and stereo modes used for flat catalog content.
const (
	ProjectionPerspective = "perspective"
	StereoMono            = "mono"
)

// Index is the root library listing.
type Index struct {
	Access  int       `json:"access"`
	Banner  *Banner   `json:"banner,omitempty"`
	Library []Library `json:"library"`
}

// Banner is an optional image shown above the library.
type Banner struct {
	Image string `json:"image"`
	Link  string `json:"link"`
}

// Library is a named list of video links.
type Library struct {
	Name string   `json:"name"`
	List []string `json:"list"`
}

// DeniedIndex returns the index shown to players without a valid login.
// The player renders the library name as a prompt.
func DeniedIndex() Index {
	return Index{
		Access:  AccessDenied,
		Library: []Library{{Name: "Login pls", List: []string{}}},
	}
}

// Scan is the flattened metadata feed used by the player's library browser.
type Scan struct {
	ScanData []ScanData `json:"scanData"`
}

// ScanData describes one video in the scan feed.
type ScanData struct {
	Link           string     `json:"link"`
	Title          string     `json:"title"`
	DateReleased   string     `json:"dateReleased"`
	DateAdded      string     `json:"dateAdded"`
	Duration       float64    `json:"duration"`
	Rating         float64    `json:"rating"`
	Favorites      int        `json:"favorites"`
	Comments       int        `json:"comments"`
	IsFavorite     bool       `json:"isFavorite"`
	Tags           []Tag      `json:"tags"`
	ThumbnailImage string     `json:"thumbnailImage"`
	Media          []Media    `json:"media"`
	Projection     string     `json:"projection"`
	Stereo         string     `json:"stereo"`
	Subtitles      []Subtitle `json:"subtitles,omitempty"`
}

// VideoData is the full descriptor of a single video.
type VideoData struct {
	Access         int        `json:"access"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ThumbnailImage string     `json:"thumbnailImage"`
	DateReleased   string     `json:"dateReleased"`
	DateAdded      string     `json:"dateAdded"`
	Duration       float64    `json:"duration"`
	Rating         float64    `json:"rating"`
	IsFavorite     bool       `json:"isFavorite"`
	Projection     string     `json:"projection"`
	Stereo         string     `json:"stereo"`
	EventServer    *string    `json:"eventServer,omitempty"`
	Subtitles      []Subtitle `json:"subtitles"`
	Tags           []Tag      `json:"tags"`
	Media          []Media    `json:"media"`
	WriteHSP       bool       `json:"writeHSP"`
}

// Subtitle is a subtitle track reachable by URL.
type Subtitle struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	URL      string `json:"url"`
}

// Tag is a label, optionally bound to a time range on a timeline track.
// Start and End are in milliseconds.
type Tag struct {
	Name   string   `json:"name"`
	Start  *float64 `json:"start,omitempty"`
	End    *float64 `json:"end,omitempty"`
	Track  *int     `json:"track,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// Media is a named group of sources for the same video.
type Media struct {
	Name    string        `json:"name"`
	Sources []MediaSource `json:"sources"`
}

// MediaSource is a single playable URL.
type MediaSource struct {
	Resolution int    `json:"resolution,omitempty"`
	Height     int    `json:"height,omitempty"`
	Width      int    `json:"width,omitempty"`
	Size       int64  `json:"size,omitempty"`
	URL        string `json:"url"`
}

// Request is the body of every library, scan and video request.
// Only the credentials and NeedsMediaSource drive server behaviour; the
// write fields are accepted for protocol compatibility.
type Request struct {
	Username         string   `json:"username"`
	Password         string   `json:"password"`
	IsFavorite       *bool    `json:"isFavorite,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	Tags             []Tag    `json:"tags,omitempty"`
	HSP              *string  `json:"hsp,omitempty"`
	DeleteFile       *bool    `json:"deleteFile,omitempty"`
	NeedsMediaSource *bool    `json:"needsMediaSource,omitempty"`
}

// WantsMediaSource reports whether the player asked for a playable URL.
func (r Request) WantsMediaSource() bool {
	return r.NeedsMediaSource != nil && *r.NeedsMediaSource
}

// EventType is the kind of playback event sent to an event server.
type EventType uint8

// Event types, in wire order.
const (
	EventOpen EventType = iota
	EventPlay
	EventPause
	EventClose
)

// String returns the event name.
func (e EventType) String() string {
	switch e {
	case EventOpen:
		return "open"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// IsValid reports whether e is a known event type.
func (e EventType) IsValid() bool {
	return e <= EventClose
}

// Event is a playback event posted by the player. Time and UTC are in
// milliseconds.
type Event struct {
	Username      string    `json:"username"`
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Event         EventType `json:"event"`
	Time          float64   `json:"time"`
	Speed         float64   `json:"speed"`
	UTC           float64   `json:"utc"`
	ConnectionKey string    `json:"connectionKey"`
}

// Float64 returns a pointer to v, for optional numeric fields.
func Float64(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for optional integer fields.
func Int(v int) *int {
	return &v
}
