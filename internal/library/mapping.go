package library

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/jmylchreest/jellyvr/pkg/heresphere"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

const (
	// LibraryName is the name of the single library exposed to the player.
	LibraryName = "Library"

	defaultMediaName   = "some mp4"
	unknownChapterName = "Unknown"
	dateLayout         = "2006-01-02"
	thumbnailParams    = "maxHeight=300&maxWidth=300&quality=90"
)

// epoch is rendered for items without a date.
var epoch = time.Unix(0, 0).UTC()

// mapper turns Jellyfin items into HereSphere payloads for one user.
type mapper struct {
	jellyfinURL string
	token       string
	baseURL     string
	subtitles   subtitleFilter
}

// NormalizeItemID renders a Jellyfin id as 32 lowercase hex characters.
// Ids that are not UUIDs are lowercased and returned as-is.
func NormalizeItemID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return strings.ReplaceAll(u.String(), "-", "")
	}
	return strings.ToLower(id)
}

// VideoLink is the HereSphere URL for an item.
func VideoLink(baseURL, itemID string) string {
	return baseURL + "/heresphere/" + itemID
}

func skipItem(item *jellyfin.Item) bool {
	return item.ID == "" || item.LocationType == jellyfin.LocationTypeVirtual
}

func (m *mapper) library(items []jellyfin.Item) heresphere.Library {
	links := make([]string, 0, len(items))
	for i := range items {
		if skipItem(&items[i]) {
			continue
		}
		links = append(links, VideoLink(m.baseURL, NormalizeItemID(items[i].ID)))
	}
	return heresphere.Library{Name: LibraryName, List: links}
}

func (m *mapper) scanData(item *jellyfin.Item) heresphere.ScanData {
	id := NormalizeItemID(item.ID)
	return heresphere.ScanData{
		Link:           VideoLink(m.baseURL, id),
		Title:          title(item),
		DateReleased:   formatDate(item.PremiereDate),
		DateAdded:      formatDate(item.DateCreated),
		Duration:       ticksToMs(item.RunTimeTicks),
		Rating:         rating(item),
		Favorites:      favorites(item),
		IsFavorite:     isFavorite(item),
		Tags:           tags(item),
		ThumbnailImage: m.thumbnail(id, item),
		Media:          m.media(item),
		Projection:     heresphere.ProjectionPerspective,
		Stereo:         heresphere.StereoMono,
		Subtitles:      m.subtitleTracks(id, item, subtitleFilter{}),
	}
}

func (m *mapper) videoData(item *jellyfin.Item) heresphere.VideoData {
	id := NormalizeItemID(item.ID)
	return heresphere.VideoData{
		Access:         heresphere.AccessMember,
		Title:          title(item),
		Description:    item.Overview,
		ThumbnailImage: m.thumbnail(id, item),
		DateReleased:   formatDate(item.PremiereDate),
		DateAdded:      formatDate(item.DateCreated),
		Duration:       ticksToMs(item.RunTimeTicks),
		Rating:         rating(item),
		IsFavorite:     isFavorite(item),
		Projection:     heresphere.ProjectionPerspective,
		Stereo:         heresphere.StereoMono,
		Subtitles:      m.subtitleTracks(id, item, m.subtitles),
		Tags:           tags(item),
		Media:          m.media(item),
		WriteHSP:       true,
	}
}

func title(item *jellyfin.Item) string {
	if item.Type == jellyfin.ItemTypeEpisode {
		return fmt.Sprintf("S%02dE%02d - %s", intOrZero(item.ParentIndexNumber), intOrZero(item.IndexNumber), item.Name)
	}
	return item.Name
}

func isFavorite(item *jellyfin.Item) bool {
	return item.UserData != nil && item.UserData.IsFavorite
}

// favorites is the requesting user's own count; Jellyfin has no global one.
func favorites(item *jellyfin.Item) int {
	if isFavorite(item) {
		return 1
	}
	return 0
}

func rating(item *jellyfin.Item) float64 {
	if item.CommunityRating == nil {
		return 0
	}
	// Jellyfin rates 0-10, HereSphere 0-5.
	return *item.CommunityRating / 2
}

func formatDate(d *jellyfin.Date) string {
	if d == nil || d.IsZero() {
		return epoch.Format(dateLayout)
	}
	return d.UTC().Format(dateLayout)
}

func ticksToMs(ticks int64) float64 {
	return float64(ticks) / jellyfin.TicksPerMillisecond
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func tags(item *jellyfin.Item) []heresphere.Tag {
	out := make([]heresphere.Tag, 0, len(item.Chapters)+len(item.Genres)+len(item.Tags)+len(item.People)+4)
	plain := func(format string, args ...any) {
		out = append(out, heresphere.Tag{Name: fmt.Sprintf(format, args...)})
	}

	runtime := ticksToMs(item.RunTimeTicks)
	for i, ch := range item.Chapters {
		name := ch.Name
		if name == "" {
			name = unknownChapterName
		}
		end := runtime
		if i+1 < len(item.Chapters) {
			end = ticksToMs(item.Chapters[i+1].StartPositionTicks)
		}
		out = append(out, heresphere.Tag{
			Name:  "Chapter:" + name,
			Start: heresphere.Float64(ticksToMs(ch.StartPositionTicks)),
			End:   heresphere.Float64(end),
			Track: heresphere.Int(0),
		})
	}

	for _, g := range item.Genres {
		plain("Genre:%s", g)
	}
	for _, t := range item.Tags {
		plain("Tag:%s", t)
	}
	if item.Type != "" {
		plain("Type:%s", item.Type)
	}

	switch item.Type {
	case jellyfin.ItemTypeMovie:
		if item.Name != "" {
			plain("Movie:%s", item.Name)
		}
		for _, s := range item.Studios {
			name := s.Name
			if name == "" {
				name = "Unknown"
			}
			plain("Studio:%s", name)
		}
	case jellyfin.ItemTypeEpisode:
		if item.SeriesName != "" {
			plain("Series:%s", item.SeriesName)
		}
		if item.SeriesStudio != "" {
			plain("Studio:%s", item.SeriesStudio)
		}
	}

	if item.SeasonName != "" {
		plain("Season:%s", item.SeasonName)
	}

	for _, p := range item.People {
		if p.Name == "" || p.Type == "" {
			continue
		}
		if p.Role != "" {
			plain("%s:%s (%s)", p.Type, p.Name, p.Role)
		}
		plain("%s:%s", p.Type, p.Name)
	}

	return out
}

func (m *mapper) thumbnail(id string, item *jellyfin.Item) string {
	kind := jellyfin.ImageTypePrimary
	if item.Type == jellyfin.ItemTypeMovie {
		kind = jellyfin.ImageTypeBackdrop
	}
	return fmt.Sprintf("%s/Items/%s/Images/%s?%s&api_key=%s",
		m.jellyfinURL, id, kind, thumbnailParams, url.QueryEscape(m.token))
}

func (m *mapper) media(item *jellyfin.Item) []heresphere.Media {
	media := make([]heresphere.Media, 0, len(item.MediaSources))
	for _, src := range item.MediaSources {
		if src.ID == "" {
			continue
		}
		name := src.Container
		if name == "" {
			name = defaultMediaName
		}
		media = append(media, heresphere.Media{
			Name: name,
			Sources: []heresphere.MediaSource{{
				URL:  fmt.Sprintf("%s/Items/%s/Download?api_key=%s", m.jellyfinURL, src.ID, url.QueryEscape(m.token)),
				Size: src.Size,
			}},
		})
	}
	return media
}

func (m *mapper) subtitleTracks(id string, item *jellyfin.Item, filter subtitleFilter) []heresphere.Subtitle {
	subs := []heresphere.Subtitle{}
	for _, src := range item.MediaSources {
		if src.ID == "" {
			continue
		}
		for _, stream := range src.MediaStreams {
			if stream.Type != jellyfin.StreamTypeSubtitle || !stream.IsTextSubtitleStream {
				continue
			}
			if !filter.matches(stream.Language) {
				continue
			}
			name := stream.DisplayTitle
			if name == "" {
				name = stream.Language
			}
			subs = append(subs, heresphere.Subtitle{
				Name:     name,
				Language: stream.Language,
				URL: fmt.Sprintf("%s/Videos/%s/%s/Subtitles/%d/Stream.%s?api_key=%s",
					m.jellyfinURL, id, src.ID, stream.Index, stream.Codec, url.QueryEscape(m.token)),
			})
		}
	}
	return subs
}

// subtitleFilter keeps subtitle streams in one language. The zero value
// keeps everything.
type subtitleFilter struct {
	raw  string
	base language.Base
	ok   bool
}

func newSubtitleFilter(lang string) subtitleFilter {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return subtitleFilter{}
	}
	f := subtitleFilter{raw: lang}
	if b, err := language.ParseBase(lang); err == nil {
		f.base, f.ok = b, true
	}
	return f
}

func (f subtitleFilter) enabled() bool {
	return f.raw != ""
}

func (f subtitleFilter) matches(lang string) bool {
	if !f.enabled() {
		return true
	}
	if strings.EqualFold(f.raw, lang) {
		return true
	}
	if !f.ok || lang == "" {
		return false
	}
	b, err := language.ParseBase(lang)
	return err == nil && b == f.base
}
