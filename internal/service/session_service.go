// Package service provides business logic layer for jellyvr operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/repository"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// PairingClient is the Jellyfin Quick Connect surface used for pairing.
type PairingClient interface {
	InitiateQuickConnect(ctx context.Context) (*jellyfin.QuickConnectResult, error)
	QuickConnectApproved(ctx context.Context, secret string) (bool, error)
	AuthenticateWithQuickConnect(ctx context.Context, secret string) (*jellyfin.AuthenticationResult, error)
	ReportCapabilities(ctx context.Context, token string, caps jellyfin.ClientCapabilities) error
}

// SessionService drives the pairing state machine: a session starts Pending
// with a Quick Connect code and becomes Authenticated once the code is approved.
type SessionService struct {
	repo     repository.SessionRepository
	jellyfin PairingClient
	logger   *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(repo repository.SessionRepository, client PairingClient) *SessionService {
	return &SessionService{
		repo:     repo,
		jellyfin: client,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *SessionService) WithLogger(logger *slog.Logger) *SessionService {
	s.logger = logger
	return s
}

// CreatePending starts a Quick Connect pairing and persists a new pending session.
func (s *SessionService) CreatePending(ctx context.Context) (*models.Session, error) {
	qc, err := s.jellyfin.InitiateQuickConnect(ctx)
	if err != nil {
		return nil, fmt.Errorf("initiating quick connect: %w", err)
	}

	session := models.NewPendingSession(qc.Secret, qc.Code)
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pairing started",
		slog.String("session_id", session.ID.String()),
		slog.String("code", qc.Code),
	)
	return session, nil
}

// Resolve loads the session for a cookie value. An empty, malformed or
// unknown ref starts a new pairing instead.
func (s *SessionService) Resolve(ctx context.Context, ref string) (*models.Session, error) {
	session, err := s.LookupBySessionRef(ctx, ref)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, models.ErrSessionNotFound):
		return s.CreatePending(ctx)
	default:
		return nil, err
	}
}

// PollAndMaybePromote checks whether a pending session's code was approved
// and, if so, promotes and persists it. Authenticated sessions are returned
// as-is. On any failure the session is returned unchanged together with an
// error wrapping models.ErrAuthenticationPending.
func (s *SessionService) PollAndMaybePromote(ctx context.Context, session *models.Session) (*models.Session, error) {
	switch st := session.State().(type) {
	case models.Authenticated:
		return session, nil
	case models.Pending:
		return s.poll(ctx, session, st)
	default:
		return session, fmt.Errorf("session %s has unknown kind %q", session.ID, session.Kind)
	}
}

func (s *SessionService) poll(ctx context.Context, session *models.Session, st models.Pending) (*models.Session, error) {
	log := s.logger.With(slog.String("session_id", session.ID.String()))

	approved, err := s.jellyfin.QuickConnectApproved(ctx, st.PairingSecret)
	if err != nil {
		log.WarnContext(ctx, "quick connect poll failed", slog.String("error", err.Error()))
		return session, fmt.Errorf("%w: %w", models.ErrAuthenticationPending, err)
	}
	if !approved {
		return session, nil
	}

	auth, err := s.jellyfin.AuthenticateWithQuickConnect(ctx, st.PairingSecret)
	if err != nil {
		log.WarnContext(ctx, "quick connect authentication failed", slog.String("error", err.Error()))
		return session, fmt.Errorf("%w: %w", models.ErrAuthenticationPending, err)
	}

	if err := s.jellyfin.ReportCapabilities(ctx, auth.AccessToken, jellyfin.ClientCapabilities{}); err != nil {
		log.WarnContext(ctx, "reporting capabilities failed", slog.String("error", err.Error()))
	}

	password, err := models.NewDerivedPassword()
	if err != nil {
		return session, fmt.Errorf("%w: %w", models.ErrAuthenticationPending, err)
	}

	// Promote a copy so the caller's session stays pending if the save fails.
	promoted := *session
	if err := promoted.Promote(models.Authenticated{
		UserID:          auth.User.ID,
		UpstreamToken:   auth.AccessToken,
		Username:        auth.User.Name,
		DerivedPassword: password,
	}); err != nil {
		return session, fmt.Errorf("%w: %w", models.ErrAuthenticationPending, err)
	}
	if err := s.repo.Save(ctx, &promoted); err != nil {
		log.ErrorContext(ctx, "persisting promoted session failed", slog.String("error", err.Error()))
		return session, fmt.Errorf("%w: %w", models.ErrAuthenticationPending, err)
	}

	log.InfoContext(ctx, "session authenticated",
		slog.String("user_id", promoted.UserID),
		slog.String("username", promoted.Username),
	)
	return &promoted, nil
}

// LookupByCredentials finds the authenticated session whose username and
// derived password match exactly.
func (s *SessionService) LookupByCredentials(ctx context.Context, username, password string) (*models.Session, error) {
	if username == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}
	session, err := s.repo.FindByCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// LookupByUserID finds the first authenticated session of a Jellyfin user.
func (s *SessionService) LookupByUserID(ctx context.Context, userID string) (*models.Session, error) {
	session, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// LookupBySessionRef loads a session by its ULID string.
func (s *SessionService) LookupBySessionRef(ctx context.Context, ref string) (*models.Session, error) {
	if ref == "" {
		return nil, models.ErrSessionNotFound
	}
	id, err := models.ParseULID(ref)
	if err != nil {
		return nil, models.ErrSessionNotFound
	}
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// Update persists the whole session.
func (s *SessionService) Update(ctx context.Context, session *models.Session) error {
	return s.repo.Save(ctx, session)
}

// List returns every session.
func (s *SessionService) List(ctx context.Context) ([]*models.Session, error) {
	return s.repo.List(ctx)
}
