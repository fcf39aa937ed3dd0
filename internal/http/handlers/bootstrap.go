package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/internal/observability"
)

// SessionCookie holds the session reference of a pairing browser.
const SessionCookie = "jellyvr_session"

var bootstrapPage = template.Must(template.New("bootstrap").Parse(`<!DOCTYPE html>
<html>
    <head>
        <meta http-equiv="refresh" content="5" />
        <title>jellyvr</title>
    </head>
    <body>
{{- if .Authenticated }}
        <h1>User: {{ .Username }}</h1>
        <h1>Pass: {{ .Password }}</h1>
        <h2><a href="/heresphere">HereSphere</a></h2>
{{- else }}
        <h1>Code: {{ .Code }}</h1>
        <p>Enter this code under Quick Connect in Jellyfin.</p>
{{- end }}
    </body>
</html>
`))

type bootstrapView struct {
	Authenticated bool
	Code          string
	Username      string
	Password      string
}

// BootstrapHandler serves the pairing page. A browser without a valid
// session cookie gets a new Quick Connect code; once the code is approved in
// Jellyfin the page shows the credentials to enter in the player.
type BootstrapHandler struct {
	sessions Sessions
}

// NewBootstrapHandler creates a new bootstrap handler.
func NewBootstrapHandler(sessions Sessions) *BootstrapHandler {
	return &BootstrapHandler{sessions: sessions}
}

// RegisterChi registers the page on the router.
func (h *BootstrapHandler) RegisterChi(r chi.Router) {
	r.Get("/", h.Page)
}

// Page resolves the cookie's session, polls pairing and renders the result.
func (h *BootstrapHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)

	var ref string
	if c, err := r.Cookie(SessionCookie); err == nil {
		ref = c.Value
	}

	session, err := h.sessions.Resolve(ctx, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err = h.sessions.PollAndMaybePromote(ctx, session)
	if err != nil && !errors.Is(err, models.ErrAuthenticationPending) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		// Still pending; the page refreshes and polls again.
		logger.DebugContext(ctx, "pairing poll failed", slog.String("error", err.Error()))
	}

	view := bootstrapView{}
	switch st := session.State().(type) {
	case models.Pending:
		view.Code = st.PairingCode
	case models.Authenticated:
		view.Authenticated = true
		view.Username = st.Username
		view.Password = st.DerivedPassword
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := bootstrapPage.Execute(w, view); err != nil {
		logger.ErrorContext(ctx, "rendering bootstrap page", slog.String("error", err.Error()))
	}
}
