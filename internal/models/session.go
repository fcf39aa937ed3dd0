package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DerivedPasswordLength is the length of the generated HereSphere password.
const DerivedPasswordLength = 6

const derivedPasswordAlphabet = "abcdefghijklmnopqrstuvwxyz"

// SessionKind discriminates the persisted session variant.
type SessionKind string

const (
	// SessionKindPending is a session waiting for Quick Connect approval.
	SessionKindPending SessionKind = "pending"
	// SessionKindAuthenticated is a session holding a Jellyfin access token.
	SessionKindAuthenticated SessionKind = "authenticated"
)

// Session is the persisted per-browser session record.
//
// The row stores both variants side by side; callers should not read the
// variant fields directly but switch on State().
type Session struct {
	BaseModel

	// Kind selects which of the variant fields are meaningful.
	Kind SessionKind `gorm:"size:16;not null;index" json:"kind"`

	// Pending variant.
	PairingSecret string `gorm:"size:128" json:"-"`
	PairingCode   string `gorm:"size:32" json:"pairing_code,omitempty"`

	// Authenticated variant.
	UserID          string         `gorm:"size:64;index" json:"user_id,omitempty"`
	UpstreamToken   string         `gorm:"size:256" json:"-"`
	Username        string         `gorm:"size:255;index:idx_sessions_credentials" json:"username,omitempty"`
	DerivedPassword string         `gorm:"size:16;index:idx_sessions_credentials" json:"-"`
	Playback        *PlaybackState `gorm:"serializer:json" json:"playback,omitempty"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// SessionState is the sealed variant view of a Session: Pending or Authenticated.
type SessionState interface {
	sessionState()
}

// Pending is a session whose Quick Connect code has not been approved yet.
type Pending struct {
	PairingSecret string
	PairingCode   string
}

// Authenticated is a session bound to a Jellyfin user.
type Authenticated struct {
	UserID          string
	UpstreamToken   string
	Username        string
	DerivedPassword string
	LastPlayback    *PlaybackState
}

func (Pending) sessionState()       {}
func (Authenticated) sessionState() {}

// NewPendingSession creates an unsaved pending session for a pairing attempt.
func NewPendingSession(secret, code string) *Session {
	return &Session{
		Kind:          SessionKindPending,
		PairingSecret: secret,
		PairingCode:   code,
	}
}

// State returns the variant view of the session, or nil for an unknown kind.
func (s *Session) State() SessionState {
	switch s.Kind {
	case SessionKindPending:
		return Pending{PairingSecret: s.PairingSecret, PairingCode: s.PairingCode}
	case SessionKindAuthenticated:
		return Authenticated{
			UserID:          s.UserID,
			UpstreamToken:   s.UpstreamToken,
			Username:        s.Username,
			DerivedPassword: s.DerivedPassword,
			LastPlayback:    s.Playback,
		}
	default:
		return nil
	}
}

// IsAuthenticated reports whether the session has completed pairing.
func (s *Session) IsAuthenticated() bool {
	return s.Kind == SessionKindAuthenticated
}

// Promote moves a pending session to the authenticated variant.
// The pairing secret is cleared; the transition cannot be undone.
func (s *Session) Promote(a Authenticated) error {
	if s.Kind != SessionKindPending {
		return ErrAlreadyAuthenticated
	}
	if a.DerivedPassword == "" {
		return fmt.Errorf("promoting session %s: derived password is required", s.ID)
	}

	s.Kind = SessionKindAuthenticated
	s.PairingSecret = ""
	s.PairingCode = ""
	s.UserID = a.UserID
	s.UpstreamToken = a.UpstreamToken
	s.Username = a.Username
	s.DerivedPassword = a.DerivedPassword
	s.Playback = a.LastPlayback
	return nil
}

// SetPlayback replaces the playback state of an authenticated session.
func (s *Session) SetPlayback(p *PlaybackState) error {
	if s.Kind != SessionKindAuthenticated {
		return ErrAuthenticationPending
	}
	s.Playback = p
	return nil
}

// NewDerivedPassword returns a random password of DerivedPasswordLength
// lowercase ASCII letters.
func NewDerivedPassword() (string, error) {
	limit := big.NewInt(int64(len(derivedPasswordAlphabet)))
	buf := make([]byte, DerivedPasswordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		buf[i] = derivedPasswordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
