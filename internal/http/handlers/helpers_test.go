package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/jellyvr/internal/http/handlers"
	"github.com/jmylchreest/jellyvr/internal/library"
	"github.com/jmylchreest/jellyvr/internal/models"
	"github.com/jmylchreest/jellyvr/pkg/heresphere"
)

func pendingSession(code string) *models.Session {
	s := models.NewPendingSession("secret-"+code, code)
	s.ID = models.NewULID()
	return s
}

func authenticatedSession(userID, username, password string) *models.Session {
	s := pendingSession("x")
	if err := s.Promote(models.Authenticated{
		UserID:          userID,
		UpstreamToken:   "token-" + userID,
		Username:        username,
		DerivedPassword: password,
	}); err != nil {
		panic(err)
	}
	return s
}

// fakeSessions is an in-memory Sessions.
type fakeSessions struct {
	mu         sync.Mutex
	byID       map[string]*models.Session
	created    []*models.Session
	resolveErr error
	promote    func(*models.Session) (*models.Session, error)
}

func newFakeSessions(sessions ...*models.Session) *fakeSessions {
	f := &fakeSessions{byID: make(map[string]*models.Session)}
	for _, s := range sessions {
		f.byID[s.ID.String()] = s
	}
	return f
}

func (f *fakeSessions) Resolve(_ context.Context, ref string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	if s, ok := f.byID[ref]; ok {
		return s, nil
	}
	s := pendingSession("NEW123")
	f.byID[s.ID.String()] = s
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeSessions) PollAndMaybePromote(_ context.Context, s *models.Session) (*models.Session, error) {
	if f.promote != nil {
		return f.promote(s)
	}
	return s, nil
}

func (f *fakeSessions) LookupByCredentials(_ context.Context, username, password string) (*models.Session, error) {
	if username == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.IsAuthenticated() && s.Username == username && s.DerivedPassword == password {
			return s, nil
		}
	}
	return nil, models.ErrSessionNotFound
}

func (f *fakeSessions) LookupBySessionRef(_ context.Context, ref string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byID[ref]; ok {
		return s, nil
	}
	return nil, models.ErrSessionNotFound
}

func (f *fakeSessions) LookupByUserID(_ context.Context, userID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.IsAuthenticated() && s.UserID == userID {
			return s, nil
		}
	}
	return nil, models.ErrSessionNotFound
}

// fakeCatalog serves a fixed entry and video set.
type fakeCatalog struct {
	mu          sync.Mutex
	entry       *models.CacheEntry
	videos      map[string]heresphere.VideoData
	err         error
	invalidated []string
	baseURLs    []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		entry: &models.CacheEntry{
			UserID:    "u1",
			Libraries: []heresphere.Library{{Name: library.LibraryName, List: []string{"http://vr.local/heresphere/abc"}}},
			Scan:      []heresphere.ScanData{{Link: "http://vr.local/heresphere/abc", Title: "Copper Sky"}},
		},
		videos: map[string]heresphere.VideoData{
			"abc": {Access: heresphere.AccessMember, Title: "Copper Sky", Duration: 60000},
		},
	}
}

func (f *fakeCatalog) GetOrRefresh(_ context.Context, s *models.Session, baseURL string) (*models.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURLs = append(f.baseURLs, baseURL)
	if !s.IsAuthenticated() {
		return nil, models.ErrAuthenticationPending
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.entry, nil
}

func (f *fakeCatalog) GetVideo(_ context.Context, _, itemID string) (*heresphere.VideoData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[itemID]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	return &v, nil
}

func (f *fakeCatalog) Invalidate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
	return nil
}

// fakePlayback records events and prepares a fixed stream URL.
type fakePlayback struct {
	mu         sync.Mutex
	events     []heresphere.Event
	eventErr   error
	prepareErr error
	prepared   []string
}

func (f *fakePlayback) HandleEvent(_ context.Context, _ *models.Session, _ string, event heresphere.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !event.Event.IsValid() {
		return models.ErrInvalidEvent
	}
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePlayback) PrepareMediaSource(_ context.Context, s *models.Session, itemID string, video heresphere.VideoData, baseURL string) (*heresphere.VideoData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	f.prepared = append(f.prepared, itemID)
	events := baseURL + "/heresphere/events/" + s.ID.String() + "/" + itemID
	video.EventServer = &events
	video.Media = []heresphere.Media{{Name: "stream", Sources: []heresphere.MediaSource{{URL: "http://jellyfin/master.m3u8"}}}}
	return &video, nil
}

type fixture struct {
	sessions *fakeSessions
	catalog  *fakeCatalog
	playback *fakePlayback
	router   *chi.Mux
}

func newFixture(t *testing.T, sessions ...*models.Session) *fixture {
	t.Helper()

	f := &fixture{
		sessions: newFakeSessions(sessions...),
		catalog:  newFakeCatalog(),
		playback: &fakePlayback{},
		router:   chi.NewRouter(),
	}

	api := humachi.New(f.router, huma.DefaultConfig("Test API", "1.0.0"))
	handlers.NewHealthHandler("1.0.0").Register(api)
	handlers.NewBootstrapHandler(f.sessions).RegisterChi(f.router)
	handlers.NewHereSphereHandler(f.sessions, f.catalog, f.playback).RegisterChi(f.router)
	handlers.NewEventHandler(f.sessions, f.playback).RegisterChi(f.router)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Host = "vr.local:3000"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func newJSONRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newRawRequest(t *testing.T, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(f *fixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}
