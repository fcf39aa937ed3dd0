package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/jellyvr/internal/library"
	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/repository"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// streamMediaName names the media entry created when an item had none.
const streamMediaName = "stream"

// PlaybackReporter is the Jellyfin playback surface.
type PlaybackReporter interface {
	PlaybackInfo(ctx context.Context, userID, itemID, token string) (*jellyfin.PlaybackInfoResponse, error)
	ReportPlaybackStart(ctx context.Context, token string, info jellyfin.PlaybackStartInfo) error
	ReportPlaybackStopped(ctx context.Context, token string, info jellyfin.PlaybackStopInfo) error
}

// PlaybackService applies player events to a session's playback state and
// opens Jellyfin play sessions for streamed items.
type PlaybackService struct {
	repo        repository.SessionRepository
	jellyfin    PlaybackReporter
	jellyfinURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPlaybackService creates a new playback service. jellyfinURL prefixes
// the stream paths handed to the player.
func NewPlaybackService(repo repository.SessionRepository, client PlaybackReporter, jellyfinURL string) *PlaybackService {
	return &PlaybackService{
		repo:        repo,
		jellyfin:    client,
		jellyfinURL: strings.TrimRight(jellyfinURL, "/"),
		now:         time.Now,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *PlaybackService) WithLogger(logger *slog.Logger) *PlaybackService {
	s.logger = logger
	return s
}

// WithClock replaces the time source.
func (s *PlaybackService) WithClock(now func() time.Time) *PlaybackService {
	s.now = now
	return s
}

// HandleEvent records a Play or Pause event against the session's playback
// state. Open and Close change nothing, and events for pending sessions are
// ignored.
func (s *PlaybackService) HandleEvent(ctx context.Context, session *models.Session, itemID string, event heresphere.Event) error {
	if !event.Event.IsValid() {
		return fmt.Errorf("%w: %d", models.ErrInvalidEvent, event.Event)
	}
	if !session.IsAuthenticated() {
		s.logger.DebugContext(ctx, "ignoring event for pending session",
			slog.String("session_id", session.ID.String()),
			slog.String("event", event.Event.String()),
		)
		return nil
	}

	var paused bool
	switch event.Event {
	case heresphere.EventPlay:
		paused = false
	case heresphere.EventPause:
		paused = true
	default:
		return nil
	}

	now := s.now()
	itemID = library.NormalizeItemID(itemID)

	// The state only carries over for the item it describes; an event for any
	// other item starts over without a play session or duration.
	var playback *models.PlaybackState
	if current := session.Playback; current != nil && current.ItemID == itemID {
		cp := *current
		playback = &cp
	} else {
		if current != nil {
			s.logger.DebugContext(ctx, "event for a different item replaces playback state",
				slog.String("session_id", session.ID.String()),
				slog.String("previous_item_id", current.ItemID),
				slog.String("item_id", itemID),
			)
		}
		playback = &models.PlaybackState{ItemID: itemID, StartedAt: now}
	}
	playback.Observe(int64(event.Time), event.Speed, paused, now)

	if err := session.SetPlayback(playback); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "playback event",
		slog.String("session_id", session.ID.String()),
		slog.String("event", event.Event.String()),
		slog.String("item_id", playback.ItemID),
		slog.Int64("position_ms", playback.PositionMs),
		slog.Float64("speed", playback.Speed),
	)
	return nil
}

// PrepareMediaSource opens a Jellyfin play session for the item and rewrites
// the video so the player streams HLS from Jellyfin and reports events back
// to baseURL. The new playback state is persisted before returning.
func (s *PlaybackService) PrepareMediaSource(
	ctx context.Context,
	session *models.Session,
	itemID string,
	video heresphere.VideoData,
	baseURL string,
) (*heresphere.VideoData, error) {
	st, ok := session.State().(models.Authenticated)
	if !ok {
		return nil, models.ErrAuthenticationPending
	}
	itemID = library.NormalizeItemID(itemID)

	info, err := s.jellyfin.PlaybackInfo(ctx, st.UserID, itemID, st.UpstreamToken)
	if err != nil {
		return nil, fmt.Errorf("opening play session for %s: %w", itemID, err)
	}

	streamURL := s.jellyfinURL + streamPath(itemID, info, st.UpstreamToken)
	eventServer := baseURL + "/heresphere/events/" + session.ID.String() + "/" + itemID

	prepared := video
	prepared.EventServer = &eventServer
	prepared.Media = withStreamURL(video.Media, streamURL)

	if old := st.LastPlayback; old != nil && old.PlaySessionID != "" && old.PlaySessionID != info.PlaySessionID {
		s.reportStopped(ctx, st.UpstreamToken, old)
	}

	now := s.now()
	playback := &models.PlaybackState{
		PlaySessionID: info.PlaySessionID,
		ItemID:        itemID,
		DurationMs:    int64(video.Duration),
		PositionMs:    0,
		Speed:         1,
		Paused:        true,
		StartedAt:     now,
		LastUpdate:    now,
	}
	if err := session.SetPlayback(playback); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}

	if err := s.jellyfin.ReportPlaybackStart(ctx, st.UpstreamToken, jellyfin.PlaybackStartInfo{
		ItemID:        itemID,
		PlaySessionID: info.PlaySessionID,
		MediaSourceID: mediaSourceID(itemID, info),
		IsPaused:      true,
		CanSeek:       true,
	}); err != nil {
		s.logger.WarnContext(ctx, "reporting playback start failed",
			slog.String("session_id", session.ID.String()),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "play session opened",
		slog.String("session_id", session.ID.String()),
		slog.String("item_id", itemID),
		slog.String("play_session_id", info.PlaySessionID),
	)
	return &prepared, nil
}

func (s *PlaybackService) reportStopped(ctx context.Context, token string, old *models.PlaybackState) {
	err := s.jellyfin.ReportPlaybackStopped(ctx, token, jellyfin.PlaybackStopInfo{
		ItemID:        old.ItemID,
		PlaySessionID: old.PlaySessionID,
		PositionTicks: jellyfin.MsToTicks(old.PositionMs),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "reporting playback stopped failed",
			slog.String("play_session_id", old.PlaySessionID),
			slog.String("error", err.Error()),
		)
	}
}

func mediaSourceID(itemID string, info *jellyfin.PlaybackInfoResponse) string {
	if len(info.MediaSources) > 0 && info.MediaSources[0].ID != "" {
		return info.MediaSources[0].ID
	}
	return itemID
}

// streamPath is the server-relative HLS path for the play session.
func streamPath(itemID string, info *jellyfin.PlaybackInfoResponse, token string) string {
	if len(info.MediaSources) > 0 && info.MediaSources[0].TranscodingURL != "" {
		return info.MediaSources[0].TranscodingURL
	}
	query := url.Values{
		"playSessionId": {info.PlaySessionID},
		"api_key":       {token},
		"mediaSourceId": {mediaSourceID(itemID, info)},
	}
	return "/Videos/" + itemID + "/master.m3u8?" + query.Encode()
}

// withStreamURL points the first source of the first media entry at
// streamURL without touching the caller's slices.
func withStreamURL(media []heresphere.Media, streamURL string) []heresphere.Media {
	if len(media) == 0 {
		return []heresphere.Media{{
			Name:    streamMediaName,
			Sources: []heresphere.MediaSource{{URL: streamURL}},
		}}
	}

	out := slices.Clone(media)
	sources := slices.Clone(out[0].Sources)
	if len(sources) == 0 {
		sources = []heresphere.MediaSource{{URL: streamURL}}
	} else {
		sources[0].URL = streamURL
	}
	out[0].Sources = sources
	return out
}
