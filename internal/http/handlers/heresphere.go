package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/observability"
	"github.com/jmylchreest/jellyvr/internal/urlutil"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
)

// HereSphereHandler serves the library, scan and video endpoints polled by
// the HereSphere player. Every request authenticates with the derived
// username and password shown on the pairing page.
type HereSphereHandler struct {
	sessions  Sessions
	catalog   Catalog
	playback  Playback
	publicURL string
}

// NewHereSphereHandler creates a new HereSphere handler.
func NewHereSphereHandler(sessions Sessions, catalog Catalog, playback Playback) *HereSphereHandler {
	return &HereSphereHandler{
		sessions: sessions,
		catalog:  catalog,
		playback: playback,
	}
}

// WithPublicURL overrides the base URL written into links.
func (h *HereSphereHandler) WithPublicURL(publicURL string) *HereSphereHandler {
	h.publicURL = publicURL
	return h
}

// RegisterChi registers the HereSphere routes on the router. The protocol
// uses fixed JSON shapes and a login payload instead of error statuses, so
// these routes bypass huma.
func (h *HereSphereHandler) RegisterChi(r chi.Router) {
	r.Route("/heresphere", func(r chi.Router) {
		r.Post("/", h.Index)
		r.Post("/scan", h.Scan)
		r.Post("/{itemId}", h.Video)
	})
}

// authenticate decodes the request body and resolves its credentials.
// It writes the response itself and returns nil when the caller should stop.
func (h *HereSphereHandler) authenticate(w http.ResponseWriter, r *http.Request) (*models.Session, *heresphere.Request) {
	var req heresphere.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body")
		return nil, nil
	}

	session, err := h.sessions.LookupByCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return nil, nil
	}
	return session, &req
}

// fail answers login errors with the access-denied index, everything else
// with a problem document.
func (h *HereSphereHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isLoginError(err) {
		observability.LoggerFromContext(r.Context()).DebugContext(r.Context(), "heresphere login required",
			slog.String("path", r.URL.Path),
			slog.String("reason", err.Error()),
		)
		writeHereSphere(w, http.StatusOK, heresphere.DeniedIndex())
		return
	}
	writeError(w, r, err)
}

// Index returns the library listing.
func (h *HereSphereHandler) Index(w http.ResponseWriter, r *http.Request) {
	session, _ := h.authenticate(w, r)
	if session == nil {
		return
	}

	entry, err := h.catalog.GetOrRefresh(r.Context(), session, urlutil.ExternalBaseURL(r, h.publicURL))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeHereSphere(w, http.StatusOK, heresphere.Index{
		Access:  heresphere.AccessMember,
		Library: entry.Libraries,
	})
}

// Scan returns the flattened metadata of every video. A truthy refresh query
// parameter discards the cached catalog first.
func (h *HereSphereHandler) Scan(w http.ResponseWriter, r *http.Request) {
	session, _ := h.authenticate(w, r)
	if session == nil {
		return
	}

	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if err := h.catalog.Invalidate(r.Context(), session.UserID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	entry, err := h.catalog.GetOrRefresh(r.Context(), session, urlutil.ExternalBaseURL(r, h.publicURL))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	scan := entry.Scan
	if scan == nil {
		scan = []heresphere.ScanData{}
	}
	writeHereSphere(w, http.StatusOK, heresphere.Scan{ScanData: scan})
}

// Video returns one item's descriptor. When the player asks for a media
// source, a Jellyfin play session is opened and the stream and event URLs
// are rewritten to use it.
func (h *HereSphereHandler) Video(w http.ResponseWriter, r *http.Request) {
	session, req := h.authenticate(w, r)
	if session == nil {
		return
	}
	itemID := chi.URLParam(r, "itemId")
	baseURL := urlutil.ExternalBaseURL(r, h.publicURL)

	if _, err := h.catalog.GetOrRefresh(r.Context(), session, baseURL); err != nil {
		h.fail(w, r, err)
		return
	}

	video, err := h.catalog.GetVideo(r.Context(), session.UserID, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.WantsMediaSource() {
		video, err = h.playback.PrepareMediaSource(r.Context(), session, itemID, *video, baseURL)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}

	writeHereSphere(w, http.StatusOK, video)
}
