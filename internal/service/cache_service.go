package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmylchreest/jellyvr/internal/library"
	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/repository"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
)

// DefaultCacheLifetime is how long a user's catalog is served before a rebuild.
const DefaultCacheLifetime = 2 * time.Minute

// LibraryBuilder produces the HereSphere listings for one user.
type LibraryBuilder interface {
	Build(ctx context.Context, req library.Request) (*library.Result, error)
}

// CacheService serves each user's catalog from the database and rebuilds it
// from Jellyfin once it is older than the configured lifetime. Concurrent
// rebuilds for the same user collapse into one.
type CacheService struct {
	repo    repository.CacheRepository
	builder LibraryBuilder
	ttl     time.Duration
	now     func() time.Time
	flights singleflight.Group
	logger  *slog.Logger
}

// NewCacheService creates a new cache service. A non-positive ttl uses
// DefaultCacheLifetime.
func NewCacheService(repo repository.CacheRepository, builder LibraryBuilder, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = DefaultCacheLifetime
	}
	return &CacheService{
		repo:    repo,
		builder: builder,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *CacheService) WithLogger(logger *slog.Logger) *CacheService {
	s.logger = logger
	return s
}

// WithClock replaces the time source.
func (s *CacheService) WithClock(now func() time.Time) *CacheService {
	s.now = now
	return s
}

// GetOrRefresh returns the session user's catalog, rebuilding it when it is
// missing or stale. baseURL is the externally visible gateway URL written
// into library links on rebuild.
//
// Callers that arrive while a rebuild for the same user is running wait for
// it and share its result or error. A caller giving up on its context does
// not cancel the rebuild for the others.
func (s *CacheService) GetOrRefresh(ctx context.Context, session *models.Session, baseURL string) (*models.CacheEntry, error) {
	st, ok := session.State().(models.Authenticated)
	if !ok {
		return nil, models.ErrAuthenticationPending
	}

	entry, err := s.freshEntry(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	ch := s.flights.DoChan(st.UserID, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), st, baseURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.CacheEntry), nil
	}
}

// freshEntry returns the stored entry if it is within its lifetime, or nil.
func (s *CacheService) freshEntry(ctx context.Context, userID string) (*models.CacheEntry, error) {
	entry, err := s.repo.GetEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.IsStale(s.now(), s.ttl) {
		return nil, nil
	}
	return entry, nil
}

func (s *CacheService) refresh(ctx context.Context, st models.Authenticated, baseURL string) (*models.CacheEntry, error) {
	// A flight that just finished may already have stored a fresh entry.
	entry, err := s.freshEntry(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	started := s.now()
	result, err := s.builder.Build(ctx, library.Request{
		UserID:  st.UserID,
		Token:   st.UpstreamToken,
		BaseURL: baseURL,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "catalog rebuild failed",
			slog.String("user_id", st.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("building catalog: %w", err)
	}

	now := s.now()
	entry = &models.CacheEntry{
		UserID:      st.UserID,
		Libraries:   result.Libraries,
		Scan:        result.Scan,
		LastUpdated: now,
	}
	videos := make([]*models.VideoRecord, 0, len(result.Videos))
	for _, v := range result.Videos {
		videos = append(videos, &models.VideoRecord{
			UserID:      st.UserID,
			ItemID:      v.ItemID,
			Video:       v.Data,
			LastUpdated: now,
		})
	}

	if err := s.repo.Replace(ctx, entry, videos); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "catalog rebuilt",
		slog.String("user_id", st.UserID),
		slog.Int("videos", len(videos)),
		slog.Duration("duration", now.Sub(started)),
	)
	return entry, nil
}

// GetVideo returns the cached descriptor of one item. It never triggers a
// rebuild.
func (s *CacheService) GetVideo(ctx context.Context, userID, itemID string) (*heresphere.VideoData, error) {
	record, err := s.repo.GetVideo(ctx, userID, library.NormalizeItemID(itemID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, models.ErrItemNotFound
	}
	return &record.Video, nil
}

// Invalidate drops the user's entry so the next GetOrRefresh rebuilds it.
func (s *CacheService) Invalidate(ctx context.Context, userID string) error {
	if err := s.repo.DeleteEntry(ctx, userID); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "catalog invalidated", slog.String("user_id", userID))
	return nil
}
