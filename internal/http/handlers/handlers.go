// Package handlers provides the HTTP handlers for jellyvr: the pairing page,
// the HereSphere endpoints and the health check.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/observability"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// maxBodySize bounds request bodies from the player.
const maxBodySize = 1 << 20

// Sessions is the session store surface used by the handlers.
type Sessions interface {
	Resolve(ctx context.Context, ref string) (*models.Session, error)
	PollAndMaybePromote(ctx context.Context, session *models.Session) (*models.Session, error)
	LookupByCredentials(ctx context.Context, username, password string) (*models.Session, error)
	LookupBySessionRef(ctx context.Context, ref string) (*models.Session, error)
	LookupByUserID(ctx context.Context, userID string) (*models.Session, error)
}

// Catalog is the per-user cache surface used by the handlers.
type Catalog interface {
	GetOrRefresh(ctx context.Context, session *models.Session, baseURL string) (*models.CacheEntry, error)
	GetVideo(ctx context.Context, userID, itemID string) (*heresphere.VideoData, error)
	Invalidate(ctx context.Context, userID string) error
}

// Playback handles player events and play-session setup.
type Playback interface {
	HandleEvent(ctx context.Context, session *models.Session, itemID string, event heresphere.Event) error
	PrepareMediaSource(ctx context.Context, session *models.Session, itemID string, video heresphere.VideoData, baseURL string) (*heresphere.VideoData, error)
}

// writeHereSphere writes v as a HereSphere JSON response.
func writeHereSphere(w http.ResponseWriter, status int, v any) {
	w.Header().Set(heresphere.HeaderVersion, heresphere.Version)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem writes an RFC 9457 problem document in huma's error format.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// isLoginError reports whether err means the player must pair (again).
func isLoginError(err error) bool {
	return errors.Is(err, models.ErrSessionNotFound) ||
		errors.Is(err, models.ErrInvalidCredentials) ||
		errors.Is(err, models.ErrAuthenticationPending) ||
		errors.Is(err, jellyfin.ErrUnauthorized)
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrItemNotFound), errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, jellyfin.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the matching problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := observability.LoggerFromContext(r.Context())

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	detail := http.StatusText(status)
	if status == http.StatusBadGateway {
		detail = "jellyfin is unavailable"
	} else if status < http.StatusInternalServerError {
		detail = err.Error()
	}
	writeProblem(w, status, detail)
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
