// Package library builds HereSphere listings from a user's Jellyfin library.
package library

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/jellyvr/pkg/heresphere"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// ItemSource lists the movies and episodes visible to a Jellyfin user.
type ItemSource interface {
	UserItems(ctx context.Context, userID, token string) (*jellyfin.ItemsResult, error)
}

// Request identifies whose library to build and where links should point.
type Request struct {
	UserID string
	Token  string
	// BaseURL is the externally visible gateway URL used in library links.
	BaseURL string
}

// Video is the descriptor of one item, keyed by its normalised id.
type Video struct {
	ItemID string
	Data   heresphere.VideoData
}

// Result is everything derived from one library fetch.
type Result struct {
	Libraries []heresphere.Library
	Scan      []heresphere.ScanData
	Videos    []Video
}

// Builder fetches a user's items and maps them to HereSphere payloads.
type Builder struct {
	source      ItemSource
	jellyfinURL string
	subtitles   subtitleFilter
	logger      *slog.Logger
}

// NewBuilder creates a builder reading from source. jellyfinURL is the
// Jellyfin base URL used for media, image and subtitle links.
func NewBuilder(source ItemSource, jellyfinURL string) *Builder {
	return &Builder{
		source:      source,
		jellyfinURL: jellyfinURL,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithPreferredSubtitleLanguage limits per-video subtitle tracks to lang.
// The scan listing keeps every language. An empty lang disables the filter.
func (b *Builder) WithPreferredSubtitleLanguage(lang string) *Builder {
	b.subtitles = newSubtitleFilter(lang)
	return b
}

// Build fetches the user's items and maps them.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	items, err := b.source.UserItems(ctx, req.UserID, req.Token)
	if err != nil {
		return nil, fmt.Errorf("listing items for user %s: %w", req.UserID, err)
	}

	result := b.Map(items.Items, req)

	b.logger.DebugContext(ctx, "built library",
		slog.String("user_id", req.UserID),
		slog.Int("items", len(items.Items)),
		slog.Int("library_len", len(result.Libraries[0].List)),
		slog.Int("scan_len", len(result.Scan)),
		slog.Int("videos_len", len(result.Videos)),
	)

	return result, nil
}

// Map converts items without fetching. Virtual and id-less items are skipped.
func (b *Builder) Map(items []jellyfin.Item, req Request) *Result {
	m := &mapper{
		jellyfinURL: b.jellyfinURL,
		token:       req.Token,
		baseURL:     req.BaseURL,
		subtitles:   b.subtitles,
	}

	result := &Result{
		Libraries: []heresphere.Library{m.library(items)},
		Scan:      make([]heresphere.ScanData, 0, len(items)),
		Videos:    make([]Video, 0, len(items)),
	}

	for i := range items {
		item := &items[i]
		if skipItem(item) {
			continue
		}
		result.Scan = append(result.Scan, m.scanData(item))
		result.Videos = append(result.Videos, Video{
			ItemID: NormalizeItemID(item.ID),
			Data:   m.videoData(item),
		})
	}

	return result
}
