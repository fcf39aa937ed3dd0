package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/observability"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
)

// EventHandler receives playback events posted to a video's event server.
// The session is identified by the reference embedded in the URL when the
// media source was prepared. Event URLs keyed by Jellyfin user id resolve to
// that user's session.
type EventHandler struct {
	sessions Sessions
	playback Playback
}

// NewEventHandler creates a new event handler.
func NewEventHandler(sessions Sessions, playback Playback) *EventHandler {
	return &EventHandler{sessions: sessions, playback: playback}
}

// RegisterChi registers the event route on the router.
func (h *EventHandler) RegisterChi(r chi.Router) {
	r.Post("/heresphere/events/{sessionRef}/{itemId}", h.Event)
}

// Event applies one playback event and answers with an empty 200.
func (h *EventHandler) Event(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionRef := chi.URLParam(r, "sessionRef")
	itemID := chi.URLParam(r, "itemId")

	var event heresphere.Event
	if err := decodeBody(w, r, &event); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid event body")
		return
	}

	observability.LoggerFromContext(ctx).DebugContext(ctx, "playback event received",
		slog.String("session_ref", sessionRef),
		slog.String("item_id", itemID),
		slog.String("event", event.Event.String()),
		slog.Float64("time", event.Time),
		slog.Float64("speed", event.Speed),
	)

	session, err := h.lookup(ctx, sessionRef)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.playback.HandleEvent(ctx, session, itemID, event); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *EventHandler) lookup(ctx context.Context, ref string) (*models.Session, error) {
	session, err := h.sessions.LookupBySessionRef(ctx, ref)
	if errors.Is(err, models.ErrSessionNotFound) {
		return h.sessions.LookupByUserID(ctx, ref)
	}
	return session, err
}
